// Package bridge wires two CAN buses, the interceptor and the configuration
// store into the running relay.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/notnil/haldex/canbus"
	"github.com/notnil/haldex/haldex"
	"github.com/notnil/haldex/nvstore"
)

// Options tunes the relay loop.
type Options struct {
	// FlushInterval is the period of the store flush tick.
	FlushInterval time.Duration
	// TxTimeout bounds a single frame transmission.
	TxTimeout time.Duration
	// StatusInterval enables a periodic info push when positive.
	StatusInterval time.Duration
	// TraceFrames logs master, reply and rewritten frames at debug level.
	TraceFrames bool
}

func (o *Options) setDefaults() {
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.TxTimeout <= 0 {
		o.TxTimeout = 5 * time.Millisecond
	}
}

// Stats counts relay activity since start.
type Stats struct {
	Received   uint64
	Relayed    uint64
	Replies    uint64
	SendErrors uint64
	Flushes    uint64
}

// Bridge relays frames between the coupling and vehicle buses through an
// Interceptor and persists configuration changes on a fixed tick.
type Bridge struct {
	buses [2]canbus.Bus
	ic    *haldex.Interceptor
	store *nvstore.Store
	opts  Options
	log   zerolog.Logger

	ready chan struct{}

	received   atomic.Uint64
	relayed    atomic.Uint64
	replies    atomic.Uint64
	sendErrors atomic.Uint64
	flushes    atomic.Uint64
}

// New returns a bridge. It takes ownership of neither bus; callers close
// them after Run returns.
func New(coupling, vehicle canbus.Bus, ic *haldex.Interceptor, store *nvstore.Store, opts Options, logger zerolog.Logger) *Bridge {
	opts.setDefaults()
	b := &Bridge{
		ic:    ic,
		store: store,
		opts:  opts,
		log:   logger.With().Str("component", "bridge").Logger(),
		ready: make(chan struct{}),
	}
	b.buses[haldex.SideCoupling] = coupling
	b.buses[haldex.SideVehicle] = vehicle
	if opts.TraceFrames {
		filter := canbus.Or(haldex.MasterFrames(), haldex.InterceptorFrames(), haldex.RewrittenFrames())
		for side, bus := range b.buses {
			l := logger.With().Str("bus", haldex.Side(side).String()).Logger()
			b.buses[side] = canbus.NewLoggedBus(bus, l, zerolog.DebugLevel, canbus.LogAll, filter)
		}
	}
	return b
}

// Ready is closed once Run has registered its frame handlers.
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Stats returns a snapshot of the relay counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Received:   b.received.Load(),
		Relayed:    b.relayed.Load(),
		Replies:    b.replies.Load(),
		SendErrors: b.sendErrors.Load(),
		Flushes:    b.flushes.Load(),
	}
}

// Run relays frames until ctx is cancelled or a bus fails. The configuration
// is flushed on every tick and once more before Run returns. A cancelled ctx
// is a clean shutdown and returns nil. Run must be called at most once.
func (b *Bridge) Run(ctx context.Context) error {
	var muxes [2]*canbus.Mux
	for side, bus := range b.buses {
		m := canbus.NewMux(bus)
		from := haldex.Side(side)
		m.HandleFunc(nil, func(f canbus.Frame) { b.handle(ctx, f, from) })
		muxes[side] = m
		defer m.Close()
	}
	close(b.ready)

	cfg := b.ic.Configuration()
	b.log.Info().
		Stringer("mode", cfg.Mode).
		Float32("pedal_threshold", cfg.PedalThreshold).
		Dur("flush_interval", b.opts.FlushInterval).
		Msg("bridge running")

	flush := time.NewTicker(b.opts.FlushInterval)
	defer flush.Stop()
	var status <-chan time.Time
	if b.opts.StatusInterval > 0 {
		t := time.NewTicker(b.opts.StatusInterval)
		defer t.Stop()
		status = t.C
	}

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-muxes[haldex.SideCoupling].Done():
			err = busError(haldex.SideCoupling, muxes[haldex.SideCoupling])
			break loop
		case <-muxes[haldex.SideVehicle].Done():
			err = busError(haldex.SideVehicle, muxes[haldex.SideVehicle])
			break loop
		case <-flush.C:
			b.flush()
		case <-status:
			b.pushStatus(ctx)
		}
	}

	b.flush()
	st := b.Stats()
	b.log.Info().
		Uint64("received", st.Received).
		Uint64("relayed", st.Relayed).
		Uint64("replies", st.Replies).
		Uint64("send_errors", st.SendErrors).
		Uint64("flushes", st.Flushes).
		Msg("bridge stopped")
	return err
}

func busError(side haldex.Side, m *canbus.Mux) error {
	err := m.Err()
	if err == nil {
		err = canbus.ErrClosed
	}
	return fmt.Errorf("%s bus: %w", side, err)
}

// handle runs on the reader goroutine of the bus the frame arrived on.
func (b *Bridge) handle(ctx context.Context, f canbus.Frame, from haldex.Side) {
	b.received.Add(1)
	d := b.ic.Route(f, from)
	if d.Relay {
		if b.send(ctx, d.To, d.Frame) {
			b.relayed.Add(1)
		}
	}
	if d.HasReply {
		if b.send(ctx, haldex.SideVehicle, d.Reply) {
			b.replies.Add(1)
		}
	}
}

func (b *Bridge) send(ctx context.Context, to haldex.Side, f canbus.Frame) bool {
	ctx, cancel := context.WithTimeout(ctx, b.opts.TxTimeout)
	defer cancel()
	if err := b.buses[to].Send(ctx, f); err != nil {
		b.sendErrors.Add(1)
		if !errors.Is(err, context.Canceled) {
			b.log.Warn().Err(err).Stringer("bus", to).Str("frame", f.String()).Msg("send failed")
		}
		return false
	}
	return true
}

func (b *Bridge) pushStatus(ctx context.Context) {
	b.send(ctx, haldex.SideVehicle, b.ic.Info())
}

func (b *Bridge) flush() {
	wrote, err := b.store.FlushIfChanged(b.ic.Configuration())
	if err != nil {
		b.log.Error().Err(err).Msg("configuration flush failed")
		return
	}
	if wrote {
		b.flushes.Add(1)
		b.log.Debug().Msg("configuration flushed")
	}
}
