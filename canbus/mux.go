package canbus

import (
	"context"
	"sync"
)

// FrameFilter decides whether a frame should be delivered to a subscriber.
type FrameFilter func(Frame) bool

// Mux multiplexes frames from a Bus to any number of subscribers via filters.
//
// It owns the provided Bus instance for receiving and runs a single background
// goroutine to read from Receive and fan-out frames. Two kinds of consumers
// are supported:
//   - handlers registered with Handle run synchronously on the reader
//     goroutine, in registration order, so invocations never overlap;
//   - subscribers registered with Subscribe receive copies on a buffered
//     channel and are skipped when their channel is full.
//
// Send is not proxied; callers should keep using the original Bus to Send.
type Mux struct {
	bus    Bus
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	subs     map[uint64]*subscriber
	handlers []route
	next     uint64
	stopped  bool
	err      error
}

type subscriber struct {
	filter FrameFilter
	ch     chan Frame
}

type route struct {
	filter  FrameFilter
	handler Handler
}

// NewMux creates and starts a multiplexer bound to the given Bus.
func NewMux(bus Bus) *Mux {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mux{
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[uint64]*subscriber),
	}
	go m.run()
	return m
}

// Done is closed once the reader goroutine has exited.
func (m *Mux) Done() <-chan struct{} { return m.done }

// Err returns the receive error that stopped the reader, if any. It is nil
// while running and after a clean Close.
func (m *Mux) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Close stops the background reader and closes all subscriber channels.
// It does not close the underlying Bus.
func (m *Mux) Close() error {
	m.cancel()
	<-m.done
	return nil
}

// Handle registers a synchronous handler for frames matching filter. A nil
// filter matches every frame.
func (m *Mux) Handle(filter FrameFilter, h Handler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, route{filter: filter, handler: h})
	m.mu.Unlock()
}

// HandleFunc is Handle for plain functions.
func (m *Mux) HandleFunc(filter FrameFilter, fn func(Frame)) {
	m.Handle(filter, HandlerFunc(fn))
}

// Subscribe registers a new subscriber with the provided filter and channel buffer.
// The returned channel will receive frames that match the filter. The cancel
// function should be called when no longer needed; it will close the channel.
func (m *Mux) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{filter: filter, ch: make(chan Frame, buffer)}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := m.next
	m.next++
	m.subs[id] = s
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if cur, ok := m.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(m.subs, id)
		}
		m.mu.Unlock()
	}
	return s.ch, cancel
}

func (m *Mux) run() {
	defer close(m.done)
	for {
		f, err := m.bus.Receive(m.ctx)
		if err != nil {
			m.mu.Lock()
			m.stopped = true
			if m.ctx.Err() == nil {
				m.err = err
			}
			for id, s := range m.subs {
				close(s.ch)
				delete(m.subs, id)
			}
			m.mu.Unlock()
			return
		}
		m.mu.RLock()
		handlers := m.handlers
		for _, s := range m.subs {
			if s.filter == nil || s.filter(f) {
				select {
				case s.ch <- f:
				default:
					// Drop if subscriber is slow and channel is full.
				}
			}
		}
		m.mu.RUnlock()
		for _, r := range handlers {
			if r.filter == nil || r.filter(f) {
				r.handler.Handle(f)
			}
		}
	}
}
