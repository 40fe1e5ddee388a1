package haldex

// pedalEngaged reports whether the pedal condition that gates locking holds.
// A zero threshold disables gating.
func pedalEngaged(pedal, threshold float32) bool {
	return pedal > threshold || threshold == 0
}

// Interpolate returns the lock target in percent for the given vehicle speed
// from the lockpoints in the order given. Points are expected in
// non-decreasing speed order; this is not checked.
//
// Between two lockpoints the target is interpolated linearly, but only while
// the pedal is above threshold; otherwise it is 0. At or beyond the ends of
// the curve the nearest lockpoint's lock value is returned regardless of the
// pedal. An empty curve yields 0.
func Interpolate(speed uint8, pedal, threshold float32, points []Lockpoint) float32 {
	if len(points) == 0 {
		return 0
	}
	upper := len(points) - 1
	for i, lp := range points {
		if lp.Speed >= speed {
			upper = i
			break
		}
	}
	lower := upper
	if upper > 0 {
		lower = upper - 1
	}
	lo, hi := points[lower], points[upper]

	if speed <= lo.Speed {
		return float32(lo.Lock)
	}
	if speed >= hi.Speed {
		return float32(hi.Lock)
	}

	var target float32
	if pedalEngaged(pedal, threshold) {
		// speed is strictly between lo and hi here, so neither term is zero.
		ratio := float32(int(hi.Speed)-int(lo.Speed)) / float32(int(speed)-int(lo.Speed))
		target = float32(lo.Lock) + float32(int(hi.Lock)-int(lo.Lock))/ratio
	}
	return target
}
