package haldex

import (
	"fmt"

	"github.com/notnil/haldex/canbus"
)

// FrameMarshaler encodes a typed protocol message into a CAN frame.
type FrameMarshaler interface {
	MarshalCANFrame() (canbus.Frame, error)
}

// FrameUnmarshaler decodes a typed protocol message from a CAN frame.
type FrameUnmarshaler interface {
	UnmarshalCANFrame(canbus.Frame) error
}

// Subcommand is the first byte of a master data-ctrl frame.
type Subcommand uint8

const (
	CheckLockpoints Subcommand = 0
	ClearLockpoints Subcommand = 1
	CheckMode       Subcommand = 2
)

func (s Subcommand) String() string {
	switch s {
	case CheckLockpoints:
		return "check-lockpoints"
	case ClearLockpoints:
		return "clear"
	case CheckMode:
		return "check-mode"
	default:
		return fmt.Sprintf("subcommand(%d)", uint8(s))
	}
}

func expect(f canbus.Frame, id uint32, minLen uint8) error {
	if f.Extended || f.ID != id {
		return fmt.Errorf("haldex: frame %s is not 0x%03X", f.String(), id)
	}
	if f.Len < minLen {
		return fmt.Errorf("haldex: frame 0x%03X too short: %d < %d", id, f.Len, minLen)
	}
	return nil
}

// ModeCommand selects the operating mode and pedal threshold (0x7FD).
type ModeCommand struct {
	Mode           Mode
	PedalThreshold uint8
}

func (m ModeCommand) MarshalCANFrame() (canbus.Frame, error) {
	return canbus.MustFrame(IDMasterMode, []byte{byte(m.Mode), m.PedalThreshold}), nil
}

func (m *ModeCommand) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDMasterMode, 2); err != nil {
		return err
	}
	m.Mode = Mode(f.Data[0])
	m.PedalThreshold = f.Data[1]
	return nil
}

// LockpointUpdate programs one lockpoint slot (0x7FF).
type LockpointUpdate struct {
	Index uint8
	Point Lockpoint
}

func (u LockpointUpdate) MarshalCANFrame() (canbus.Frame, error) {
	if int(u.Index) >= TableSize {
		return canbus.Frame{}, fmt.Errorf("haldex: lockpoint index %d out of range [0,%d)", u.Index, TableSize)
	}
	return canbus.MustFrame(IDMasterData, []byte{u.Index, u.Point.Speed, u.Point.Lock, u.Point.Intensity}), nil
}

func (u *LockpointUpdate) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDMasterData, 4); err != nil {
		return err
	}
	u.Index = f.Data[0]
	u.Point = Lockpoint{Speed: f.Data[1], Lock: f.Data[2], Intensity: f.Data[3]}
	return nil
}

// DataCtrlCommand carries a data-ctrl subcommand (0x7FE).
type DataCtrlCommand struct {
	Subcommand Subcommand
}

func (c DataCtrlCommand) MarshalCANFrame() (canbus.Frame, error) {
	return canbus.MustFrame(IDMasterDataCtrl, []byte{byte(c.Subcommand)}), nil
}

func (c *DataCtrlCommand) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDMasterDataCtrl, 1); err != nil {
		return err
	}
	c.Subcommand = Subcommand(f.Data[0])
	return nil
}

// LockpointReport answers CheckLockpoints (0x7FC, byte 0 = 0).
//
// The third byte is computed as (mask<<8)&0xFF and is therefore always zero;
// deployed masters expect exactly that, so slots 8 and 9 cannot be observed
// through this report.
type LockpointReport struct {
	Mask uint16
}

func (r LockpointReport) MarshalCANFrame() (canbus.Frame, error) {
	return canbus.MustFrame(IDInterceptorReply, []byte{
		byte(CheckLockpoints),
		byte(r.Mask & 0xFF),
		byte((r.Mask << 8) & 0xFF),
	}), nil
}

func (r *LockpointReport) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDInterceptorReply, 3); err != nil {
		return err
	}
	if Subcommand(f.Data[0]) != CheckLockpoints {
		return fmt.Errorf("haldex: reply %s is not a lockpoint report", f.String())
	}
	r.Mask = uint16(f.Data[1]) | uint16(f.Data[2])<<8
	return nil
}

// ModeReport answers CheckMode (0x7FC, byte 0 = 2).
type ModeReport struct {
	Mode           Mode
	PedalThreshold uint8
}

func (r ModeReport) MarshalCANFrame() (canbus.Frame, error) {
	return canbus.MustFrame(IDInterceptorReply, []byte{byte(CheckMode), byte(r.Mode), r.PedalThreshold}), nil
}

func (r *ModeReport) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDInterceptorReply, 3); err != nil {
		return err
	}
	if Subcommand(f.Data[0]) != CheckMode {
		return fmt.Errorf("haldex: reply %s is not a mode report", f.String())
	}
	r.Mode = Mode(f.Data[1])
	r.PedalThreshold = f.Data[2]
	return nil
}

// InfoReport is the interceptor status push (0x7FB).
type InfoReport struct {
	LockTarget   uint8
	VehicleSpeed uint8
}

func (r InfoReport) MarshalCANFrame() (canbus.Frame, error) {
	return canbus.MustFrame(IDInterceptorInfo, []byte{r.LockTarget, r.VehicleSpeed}), nil
}

func (r *InfoReport) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDInterceptorInfo, 2); err != nil {
		return err
	}
	r.LockTarget = f.Data[0]
	r.VehicleSpeed = f.Data[1]
	return nil
}

// mustMarshal is used for messages whose MarshalCANFrame cannot fail.
func mustMarshal(m FrameMarshaler) canbus.Frame {
	f, err := m.MarshalCANFrame()
	if err != nil {
		panic(err)
	}
	return f
}
