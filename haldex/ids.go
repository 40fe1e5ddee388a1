package haldex

import "github.com/notnil/haldex/canbus"

// Identifiers observed or produced by the interceptor. All are 11-bit
// standard identifiers; everything except CouplingStatus lives on the
// vehicle bus.
const (
	IDBrakes1        uint32 = 0x1A0
	IDMotor1         uint32 = 0x280 // carries the accelerator pedal in byte 5
	IDMotor2         uint32 = 0x288 // carries the vehicle speed in byte 3
	IDCouplingStatus uint32 = 0x2C0 // coupling bus, relayed to the vehicle bus
	IDMotor3         uint32 = 0x380
	IDMotor6         uint32 = 0x488
	IDBrakes3        uint32 = 0x4A0

	IDInterceptorInfo  uint32 = 0x7FB // interceptor -> master status push
	IDInterceptorReply uint32 = 0x7FC // interceptor -> master data-ctrl reply
	IDMasterMode       uint32 = 0x7FD // master -> interceptor mode + threshold
	IDMasterDataCtrl   uint32 = 0x7FE // master -> interceptor subcommand
	IDMasterData       uint32 = 0x7FF // master -> interceptor lockpoint
)

// Side identifies one of the two buses the interceptor is wired to.
type Side uint8

const (
	// SideCoupling is bus A, the coupling unit's private bus.
	SideCoupling Side = iota
	// SideVehicle is bus B, the vehicle's drivetrain bus.
	SideVehicle
)

func (s Side) String() string {
	switch s {
	case SideCoupling:
		return "coupling"
	case SideVehicle:
		return "vehicle"
	default:
		return "unknown"
	}
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideCoupling {
		return SideVehicle
	}
	return SideCoupling
}

// MasterFrames matches the three master control channel frames.
func MasterFrames() canbus.FrameFilter {
	return canbus.And(canbus.DataOnly(), canbus.ByIDs(IDMasterMode, IDMasterDataCtrl, IDMasterData))
}

// InterceptorFrames matches frames produced by the interceptor for the master.
func InterceptorFrames() canbus.FrameFilter {
	return canbus.And(canbus.DataOnly(), canbus.ByIDs(IDInterceptorInfo, IDInterceptorReply))
}

// RewrittenFrames matches the vehicle frames the rewriter may modify.
func RewrittenFrames() canbus.FrameFilter {
	return canbus.ByIDs(IDMotor1, IDMotor3, IDMotor6, IDBrakes1, IDBrakes3)
}
