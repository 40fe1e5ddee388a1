package canbus

import (
	"context"
	"sync"
)

// loopbackDepth is the receive queue length of each loopback endpoint.
const loopbackDepth = 64

// LoopbackBus is an in-memory CAN segment for tests and simulations. Every
// frame sent by one endpoint is delivered, in send order, to all other
// endpoints whose acceptance filter matches. A full receive queue applies
// backpressure to the sender, like a controller that cannot win arbitration.
type LoopbackBus struct {
	mu     sync.Mutex
	closed bool
	eps    []*loopEndpoint
}

// NewLoopbackBus creates an empty segment.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{}
}

// Open attaches an endpoint that receives every frame.
func (b *LoopbackBus) Open() Bus {
	return b.OpenFiltered(nil)
}

// OpenFiltered attaches an endpoint that only receives frames matching
// accept, the way a controller acceptance filter would. Endpoints opened on a
// closed segment report ErrClosed.
func (b *LoopbackBus) OpenFiltered(accept FrameFilter) Bus {
	ep := &loopEndpoint{
		seg:    b,
		accept: accept,
		rx:     make(chan Frame, loopbackDepth),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ep.shutdown()
		return ep
	}
	b.eps = append(b.eps, ep)
	return ep
}

// Close detaches and closes every endpoint.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	eps := b.eps
	b.eps = nil
	b.closed = true
	b.mu.Unlock()
	for _, ep := range eps {
		ep.shutdown()
	}
	return nil
}

func (b *LoopbackBus) detach(ep *loopEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.eps {
		if cur == ep {
			b.eps = append(b.eps[:i], b.eps[i+1:]...)
			return
		}
	}
}

// peers returns the endpoints a frame from src must reach.
func (b *LoopbackBus) peers(src *loopEndpoint, f Frame) ([]*loopEndpoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	out := make([]*loopEndpoint, 0, len(b.eps))
	for _, ep := range b.eps {
		if ep != src && (ep.accept == nil || ep.accept(f)) {
			out = append(out, ep)
		}
	}
	return out, true
}

type loopEndpoint struct {
	seg    *LoopbackBus
	accept FrameFilter
	rx     chan Frame
	done   chan struct{}
	once   sync.Once
}

func (e *loopEndpoint) shutdown() {
	e.once.Do(func() { close(e.done) })
}

func (e *loopEndpoint) isClosed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Send delivers frame to every other accepting endpoint. It blocks while a
// receiver's queue is full, until ctx ends.
func (e *loopEndpoint) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if e.isClosed() {
		return ErrClosed
	}
	targets, ok := e.seg.peers(e, frame)
	if !ok {
		return ErrClosed
	}
	for _, t := range targets {
		select {
		case t.rx <- frame:
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *loopEndpoint) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-e.rx:
		return f, nil
	case <-e.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (e *loopEndpoint) Close() error {
	e.seg.detach(e)
	e.shutdown()
	return nil
}
