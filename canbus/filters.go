package canbus

// Composable FrameFilter helpers. A nil FrameFilter matches every frame.

// Any matches every frame.
func Any() FrameFilter {
	return func(Frame) bool { return true }
}

// ByID returns a filter that matches standard frames with the exact identifier.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return !f.Extended && f.ID == id }
}

// ByIDs returns a filter that matches standard frames carrying any of the
// provided identifiers.
func ByIDs(ids ...uint32) FrameFilter {
	set := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(f Frame) bool {
		if f.Extended {
			return false
		}
		_, ok := set[f.ID]
		return ok
	}
}

// ByRange matches standard frames whose ID is within [minID, maxID], inclusive.
func ByRange(minID, maxID uint32) FrameFilter {
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return func(f Frame) bool { return !f.Extended && f.ID >= minID && f.ID <= maxID }
}

// StandardOnly matches standard (11-bit) identifiers.
func StandardOnly() FrameFilter {
	return func(f Frame) bool { return !f.Extended }
}

// DataOnly matches non-RTR frames.
func DataOnly() FrameFilter {
	return func(f Frame) bool { return !f.RTR }
}

// And composes filters; the result matches when all match.
func And(filters ...FrameFilter) FrameFilter {
	return func(f Frame) bool {
		for _, fl := range filters {
			if fl != nil && !fl(f) {
				return false
			}
		}
		return true
	}
}

// Or composes filters; the result matches when any matches.
func Or(filters ...FrameFilter) FrameFilter {
	return func(f Frame) bool {
		for _, fl := range filters {
			if fl == nil || fl(f) {
				return true
			}
		}
		return false
	}
}

// Not inverts a filter.
func Not(a FrameFilter) FrameFilter {
	if a == nil {
		return func(Frame) bool { return false }
	}
	return func(f Frame) bool { return !a(f) }
}
