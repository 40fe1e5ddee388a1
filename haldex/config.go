package haldex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ConfigurationSize is the size of the persisted configuration image.
//
// Layout (little-endian):
//
//	0      mode
//	1..3   zero padding
//	4..7   pedal threshold, IEEE-754 float32
//	8..37  ten lockpoints as (speed, lock, intensity)
//	38..39 zero padding
const ConfigurationSize = 40

const lockpointsOffset = 8

// Configuration is the persisted part of the interceptor state.
type Configuration struct {
	Mode           Mode
	PedalThreshold float32
	Lockpoints     [TableSize]Lockpoint
}

// MarshalBinary encodes the configuration image.
func (c Configuration) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ConfigurationSize)
	c.encode(buf)
	return buf, nil
}

func (c Configuration) encode(buf []byte) {
	buf[0] = byte(c.Mode)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(c.PedalThreshold))
	for i, lp := range c.Lockpoints {
		off := lockpointsOffset + 3*i
		buf[off] = lp.Speed
		buf[off+1] = lp.Lock
		buf[off+2] = lp.Intensity
	}
}

// UnmarshalBinary decodes a configuration image. Padding bytes are ignored.
func (c *Configuration) UnmarshalBinary(data []byte) error {
	if len(data) < ConfigurationSize {
		return fmt.Errorf("haldex: configuration image needs %d bytes, got %d", ConfigurationSize, len(data))
	}
	c.Mode = Mode(data[0])
	c.PedalThreshold = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	for i := range c.Lockpoints {
		off := lockpointsOffset + 3*i
		c.Lockpoints[i] = Lockpoint{Speed: data[off], Lock: data[off+1], Intensity: data[off+2]}
	}
	return nil
}
