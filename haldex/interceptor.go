package haldex

import (
	"github.com/rs/zerolog"

	"github.com/notnil/haldex/canbus"
	"github.com/notnil/haldex/internal/syncutil"
)

// Runtime is a snapshot of the non-persisted interceptor state.
type Runtime struct {
	VehicleSpeed uint8
	PedalValue   float32
	LockTarget   float32
	Mask         uint16
	Count        uint8
}

// Decision tells the caller what to transmit after routing one frame.
type Decision struct {
	// Frame is the frame to relay, possibly rewritten, valid when Relay is set.
	Frame canbus.Frame
	// To is the side Frame must be sent on.
	To    Side
	Relay bool
	// Reply is a response for the master, always sent on the vehicle side.
	Reply    canbus.Frame
	HasReply bool
}

// Interceptor holds the configuration and runtime state and implements the
// routing, rewriting and configuration protocol.
//
// A single mutex guards all state and is held for the whole of one Route
// call, so the frame handlers of both buses observe a consistent state and
// never interleave their updates.
type Interceptor struct {
	mu syncutil.Mutex

	mode      Mode
	threshold float32
	table     LockpointTable

	speed  uint8
	pedal  float32
	target float32

	log zerolog.Logger
}

// New returns an interceptor initialised from a stored configuration. The
// occupancy set starts empty: lockpoints restored from storage take part in
// interpolation only after the master has sent them again.
func New(cfg Configuration, logger zerolog.Logger) *Interceptor {
	i := &Interceptor{
		mode:      cfg.Mode,
		threshold: cfg.PedalThreshold,
		log:       logger.With().Str("component", "interceptor").Logger(),
	}
	i.table.Points = cfg.Lockpoints
	return i
}

// Configuration returns a copy of the persisted configuration.
func (i *Interceptor) Configuration() Configuration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Configuration{
		Mode:           i.mode,
		PedalThreshold: i.threshold,
		Lockpoints:     i.table.Points,
	}
}

// Runtime returns a copy of the runtime state.
func (i *Interceptor) Runtime() Runtime {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Runtime{
		VehicleSpeed: i.speed,
		PedalValue:   i.pedal,
		LockTarget:   i.target,
		Mask:         i.table.Mask,
		Count:        i.table.Count,
	}
}

// Table returns a copy of the lockpoint table with its occupancy set.
func (i *Interceptor) Table() LockpointTable {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.table
}

// Info returns the status push frame for the current state.
func (i *Interceptor) Info() canbus.Frame {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.infoLocked()
}

func (i *Interceptor) infoLocked() canbus.Frame {
	return mustMarshal(InfoReport{LockTarget: uint8(i.target), VehicleSpeed: i.speed})
}

// Route classifies one frame received on side from and returns what to
// transmit. It never blocks and does a bounded amount of work.
func (i *Interceptor) Route(f canbus.Frame, from Side) Decision {
	if from == SideCoupling {
		return Decision{Frame: f, To: SideVehicle, Relay: true}
	}
	relay := Decision{Frame: f, To: SideCoupling, Relay: true}
	if f.Extended || f.RTR {
		return relay
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	switch f.ID {
	case IDMasterMode:
		return i.handleMode(f)
	case IDMasterData:
		i.handleData(f)
		return Decision{}
	case IDMasterDataCtrl:
		return i.handleDataCtrl(f)
	}

	out := &relay.Frame
	switch out.ID {
	case IDMotor1:
		if out.Len > 5 {
			i.pedal = float32(out.Data[5]) * 0.4
		}
		if i.mode == Forward {
			out.Data = [8]byte{}
		}
	case IDMotor2:
		if out.Len > 3 {
			i.speed = uint8(int(out.Data[3]) * 100 * 128 / 10000)
		}
	case IDBrakes1:
		forceBrakes1(out)
	}
	if i.mode.Rewrites() {
		i.rewrite(out)
	}
	return relay
}

func (i *Interceptor) handleMode(f canbus.Frame) Decision {
	var cmd ModeCommand
	if err := cmd.UnmarshalCANFrame(f); err != nil {
		i.log.Debug().Err(err).Msg("dropping mode frame")
		return Decision{}
	}
	i.mode = cmd.Mode
	i.threshold = float32(cmd.PedalThreshold)
	switch i.mode {
	case FiftyFifty:
		i.target = 100
	case Forward:
		i.target = 0
	}
	i.log.Info().
		Stringer("mode", i.mode).
		Float32("pedal_threshold", i.threshold).
		Msg("mode changed")
	return Decision{Reply: i.infoLocked(), HasReply: true}
}

func (i *Interceptor) handleData(f canbus.Frame) {
	var upd LockpointUpdate
	if err := upd.UnmarshalCANFrame(f); err != nil {
		i.log.Debug().Err(err).Msg("dropping lockpoint frame")
		return
	}
	if !i.table.Set(upd.Index, upd.Point) {
		i.log.Debug().Uint8("index", upd.Index).Msg("lockpoint index out of range")
		return
	}
	i.log.Debug().
		Uint8("index", upd.Index).
		Uint8("speed", upd.Point.Speed).
		Uint8("lock", upd.Point.Lock).
		Uint8("intensity", upd.Point.Intensity).
		Uint16("mask", i.table.Mask).
		Uint8("count", i.table.Count).
		Msg("lockpoint received")
}

func (i *Interceptor) handleDataCtrl(f canbus.Frame) Decision {
	var cmd DataCtrlCommand
	if err := cmd.UnmarshalCANFrame(f); err != nil {
		return Decision{}
	}
	switch cmd.Subcommand {
	case CheckLockpoints:
		return Decision{Reply: mustMarshal(LockpointReport{Mask: i.table.Mask}), HasReply: true}
	case ClearLockpoints:
		i.table.Clear()
		i.log.Info().Msg("lockpoints cleared")
		return Decision{}
	case CheckMode:
		return Decision{Reply: mustMarshal(ModeReport{Mode: i.mode, PedalThreshold: uint8(i.threshold)}), HasReply: true}
	default:
		i.log.Debug().Stringer("subcommand", cmd.Subcommand).Msg("ignoring unknown subcommand")
		return Decision{}
	}
}
