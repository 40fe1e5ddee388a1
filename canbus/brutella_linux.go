//go:build linux

package canbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/brutella/can"
)

// brutellaBus adapts the callback-driven github.com/brutella/can SocketCAN
// bus to the Bus interface. Frames published by the library's reader loop are
// queued on a buffered channel; when the queue is full the oldest backlog is
// kept and the new frame is dropped, mirroring a controller RX overrun.
type brutellaBus struct {
	bus *can.Bus
	rx  chan Frame

	closeOnce sync.Once
	closed    chan struct{}
	errc      chan error
}

// DialBrutella opens iface through github.com/brutella/can.
func DialBrutella(iface string) (Bus, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, fmt.Errorf("canbus: brutella %s: %w", iface, err)
	}
	b := &brutellaBus{
		bus:    bus,
		rx:     make(chan Frame, 256),
		closed: make(chan struct{}),
		errc:   make(chan error, 1),
	}
	bus.Subscribe(b)
	go func() {
		b.errc <- bus.ConnectAndPublish()
	}()
	return b, nil
}

// Handle implements can.Handler.
func (b *brutellaBus) Handle(cf can.Frame) {
	raw := cf.ID
	if raw&canErrFlag != 0 {
		return
	}
	f := Frame{
		Extended: raw&canEffFlag != 0,
		RTR:      raw&canRtrFlag != 0,
		Len:      cf.Length,
		Data:     cf.Data,
	}
	if f.Extended {
		f.ID = raw & MaxExtID
	} else {
		f.ID = raw & MaxStdID
	}
	if f.Validate() != nil {
		return
	}
	select {
	case b.rx <- f:
	default:
	}
}

func (b *brutellaBus) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	id := frame.ID
	if frame.Extended {
		id |= canEffFlag
	}
	if frame.RTR {
		id |= canRtrFlag
	}
	return b.bus.Publish(can.Frame{ID: id, Length: frame.Len, Data: frame.Data})
}

func (b *brutellaBus) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-b.rx:
		return f, nil
	case err := <-b.errc:
		if err == nil {
			err = ErrClosed
		}
		b.errc <- err
		return Frame{}, fmt.Errorf("canbus: brutella reader stopped: %w", err)
	case <-b.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (b *brutellaBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		b.bus.Unsubscribe(b)
		err = b.bus.Disconnect()
	})
	return err
}
