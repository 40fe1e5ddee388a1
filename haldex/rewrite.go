package haldex

import (
	"math"

	"github.com/notnil/haldex/canbus"
)

// Base values substituted into rewritten frames. They match the magnitudes
// the coupling unit sees from the stock controllers at full slip.
const (
	baseMotorTorque = 0xF0
	baseMotorLoad   = 0x4E
	baseMotorRPM    = 0xFA
	baseMotorFull   = 0xFE
	baseBrakeSlip   = 0xFF
	baseWheelSlip   = 0xFE

	brakes3Marker = 0xA
)

// forceBrakes1 clears the two brake 1 status bytes the coupling unit uses to
// back off locking. It applies in every mode.
func forceBrakes1(f *canbus.Frame) {
	f.Data[1] = 0x00
	f.Data[2] = 0x00
}

// rewrite overwrites the lock relevant bytes of f. Callers hold i.mu and only
// call it in modes that rewrite.
func (i *Interceptor) rewrite(f *canbus.Frame) {
	switch f.ID {
	case IDMotor1:
		f.Data[1] = i.adjusted(baseMotorTorque)
		f.Data[4] = i.adjusted(baseMotorTorque)
	case IDMotor3:
		f.Data[2] = i.adjusted(baseMotorRPM)
		f.Data[7] = i.adjusted(baseMotorFull)
	case IDMotor6:
		f.Data[1] = i.adjusted(baseMotorFull)
		f.Data[2] = i.adjusted(baseMotorLoad)
	case IDBrakes1:
		f.Data[3] = i.adjusted(baseBrakeSlip)
	case IDBrakes3:
		packBrakes3(f, i.adjusted(baseWheelSlip))
	}
}

// packBrakes3 rebuilds the first three bytes of a brake 3 frame from four
// fields: marker nibble, slip byte, marker nibble, slip byte.
//
//	byte0 = slip[3:0]<<4 | 0xA
//	byte1 = 0xA<<4       | slip[7:4]
//	byte2 = slip
func packBrakes3(f *canbus.Frame, slip uint8) {
	f.Data[0] = (slip&0x0F)<<4 | brakes3Marker
	f.Data[1] = brakes3Marker<<4 | slip>>4
	f.Data[2] = slip
}

// adjusted scales a base value according to the current mode. Callers hold
// i.mu.
func (i *Interceptor) adjusted(value uint8) uint8 {
	switch i.mode {
	case FiftyFifty:
		if pedalEngaged(i.pedal, i.threshold) {
			return value
		}
		return 0
	case Custom:
		target := i.interpolate()
		i.target = target
		// The actuator response is not linear; halving and offsetting the
		// target approximates it over the useful range.
		target = target/2 + 20
		return clampByte(math.Round(float64(value) * float64(target) / 100))
	default:
		return value
	}
}

func (i *Interceptor) interpolate() float32 {
	return Interpolate(i.speed, i.pedal, i.threshold, i.table.Populated())
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
