package haldex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	t.Parallel()
	twoPoint := []Lockpoint{{Speed: 20, Lock: 10}, {Speed: 60, Lock: 90}}
	threePoint := []Lockpoint{{Speed: 10, Lock: 0}, {Speed: 50, Lock: 40}, {Speed: 100, Lock: 100}}

	tests := []struct {
		name      string
		speed     uint8
		pedal     float32
		threshold float32
		points    []Lockpoint
		want      float32
	}{
		{name: "empty curve", speed: 40, points: nil, want: 0},
		{name: "below first point", speed: 0, points: twoPoint, want: 10},
		{name: "at first point", speed: 20, points: twoPoint, want: 10},
		{name: "at last point", speed: 60, points: twoPoint, want: 90},
		{name: "beyond last point", speed: 255, points: twoPoint, want: 90},
		{name: "midway, ungated", speed: 40, points: twoPoint, want: 50},
		{name: "quarter way", speed: 30, points: twoPoint, want: 30},
		{name: "midway, pedal above threshold", speed: 40, pedal: 60, threshold: 50, points: twoPoint, want: 50},
		{name: "midway, pedal below threshold", speed: 40, pedal: 10, threshold: 50, points: twoPoint, want: 0},
		{name: "end points ignore pedal", speed: 70, pedal: 0, threshold: 50, points: twoPoint, want: 90},
		{name: "descending lock", speed: 40, points: []Lockpoint{{Speed: 20, Lock: 90}, {Speed: 60, Lock: 10}}, want: 50},
		{name: "second segment", speed: 75, points: threePoint, want: 70},
		{name: "single point below", speed: 5, points: threePoint[:1], want: 0},
		{name: "single point above", speed: 200, points: []Lockpoint{{Speed: 10, Lock: 33}}, want: 33},
		{
			name:   "array order is not sorted",
			speed:  30,
			points: []Lockpoint{{Speed: 50, Lock: 70}, {Speed: 20, Lock: 10}},
			want:   70,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Interpolate(tt.speed, tt.pedal, tt.threshold, tt.points)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

func TestInterpolateEndpointsExact(t *testing.T) {
	t.Parallel()
	points := []Lockpoint{{Speed: 30, Lock: 17}, {Speed: 80, Lock: 63}, {Speed: 140, Lock: 99}}
	for s := 0; s <= 255; s++ {
		got := Interpolate(uint8(s), 0, 100, points)
		switch {
		case s <= 30:
			assert.Equal(t, float32(17), got, "speed %d", s)
		case s >= 140:
			assert.Equal(t, float32(99), got, "speed %d", s)
		}
	}
}
