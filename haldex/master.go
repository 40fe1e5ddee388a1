package haldex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/haldex/canbus"
)

// ErrNoReply is returned when the interceptor does not answer in time.
var ErrNoReply = errors.New("haldex: no reply from interceptor")

// Master is the client side of the configuration protocol. It sends on bus
// and waits for replies through mux, which must be reading the same bus.
type Master struct {
	bus     canbus.Bus
	mux     *canbus.Mux
	timeout time.Duration
}

// NewMaster constructs a Master. timeout bounds each request/reply exchange;
// zero means 500ms.
func NewMaster(bus canbus.Bus, mux *canbus.Mux, timeout time.Duration) *Master {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Master{bus: bus, mux: mux, timeout: timeout}
}

func (m *Master) send(ctx context.Context, msg FrameMarshaler) error {
	f, err := msg.MarshalCANFrame()
	if err != nil {
		return err
	}
	return m.bus.Send(ctx, f)
}

// request sends msg and waits for the first frame matching filter.
func (m *Master) request(ctx context.Context, msg FrameMarshaler, filter canbus.FrameFilter) (canbus.Frame, error) {
	ch, cancel := m.mux.Subscribe(filter, 1)
	defer cancel()

	ctx, done := context.WithTimeout(ctx, m.timeout)
	defer done()
	if err := m.send(ctx, msg); err != nil {
		return canbus.Frame{}, err
	}
	select {
	case f, ok := <-ch:
		if !ok {
			return canbus.Frame{}, canbus.ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return canbus.Frame{}, ErrNoReply
		}
		return canbus.Frame{}, ctx.Err()
	}
}

func replyFilter(sub Subcommand) canbus.FrameFilter {
	return func(f canbus.Frame) bool {
		return !f.Extended && f.ID == IDInterceptorReply && f.Len >= 3 && Subcommand(f.Data[0]) == sub
	}
}

// SetMode selects mode and pedal threshold and returns the status the
// interceptor pushes in response.
func (m *Master) SetMode(ctx context.Context, mode Mode, threshold uint8) (InfoReport, error) {
	f, err := m.request(ctx, ModeCommand{Mode: mode, PedalThreshold: threshold}, canbus.ByID(IDInterceptorInfo))
	if err != nil {
		return InfoReport{}, fmt.Errorf("set mode %s: %w", mode, err)
	}
	var info InfoReport
	if err := info.UnmarshalCANFrame(f); err != nil {
		return InfoReport{}, err
	}
	return info, nil
}

// SetLockpoint programs one slot. The interceptor does not acknowledge it;
// use CheckLockpoints to confirm.
func (m *Master) SetLockpoint(ctx context.Context, index uint8, lp Lockpoint) error {
	if err := m.send(ctx, LockpointUpdate{Index: index, Point: lp}); err != nil {
		return fmt.Errorf("set lockpoint %d: %w", index, err)
	}
	return nil
}

// SetCurve clears the table and programs points into slots 0..len-1.
// Points should be ordered by speed.
func (m *Master) SetCurve(ctx context.Context, points []Lockpoint) error {
	if len(points) > TableSize {
		return fmt.Errorf("haldex: curve has %d points, at most %d fit", len(points), TableSize)
	}
	for j := 1; j < len(points); j++ {
		if points[j].Speed < points[j-1].Speed {
			return fmt.Errorf("haldex: curve not ordered by speed at point %d", j)
		}
	}
	if err := m.Clear(ctx); err != nil {
		return err
	}
	for j, lp := range points {
		if err := m.SetLockpoint(ctx, uint8(j), lp); err != nil {
			return err
		}
	}
	return nil
}

// Clear resets the lockpoint table. Mode and threshold are kept.
func (m *Master) Clear(ctx context.Context) error {
	if err := m.send(ctx, DataCtrlCommand{Subcommand: ClearLockpoints}); err != nil {
		return fmt.Errorf("clear lockpoints: %w", err)
	}
	return nil
}

// CheckLockpoints returns the occupancy set reported by the interceptor.
// Only bits 0..7 are observable.
func (m *Master) CheckLockpoints(ctx context.Context) (LockpointReport, error) {
	f, err := m.request(ctx, DataCtrlCommand{Subcommand: CheckLockpoints}, replyFilter(CheckLockpoints))
	if err != nil {
		return LockpointReport{}, fmt.Errorf("check lockpoints: %w", err)
	}
	var r LockpointReport
	if err := r.UnmarshalCANFrame(f); err != nil {
		return LockpointReport{}, err
	}
	return r, nil
}

// CheckMode returns the mode and threshold reported by the interceptor.
func (m *Master) CheckMode(ctx context.Context) (ModeReport, error) {
	f, err := m.request(ctx, DataCtrlCommand{Subcommand: CheckMode}, replyFilter(CheckMode))
	if err != nil {
		return ModeReport{}, fmt.Errorf("check mode: %w", err)
	}
	var r ModeReport
	if err := r.UnmarshalCANFrame(f); err != nil {
		return ModeReport{}, err
	}
	return r, nil
}

// SubscribeInfo delivers parsed status pushes until cancel is called or the
// mux stops. Pushes are dropped while the channel is full.
func (m *Master) SubscribeInfo(buffer int) (<-chan InfoReport, func()) {
	frames, cancel := m.mux.Subscribe(canbus.ByID(IDInterceptorInfo), buffer)
	out := make(chan InfoReport, buffer)
	go func() {
		defer close(out)
		for f := range frames {
			var r InfoReport
			if err := r.UnmarshalCANFrame(f); err != nil {
				continue
			}
			select {
			case out <- r:
			default:
			}
		}
	}()
	return out, cancel
}
