package haldex

// TableSize is the number of lockpoint slots.
const TableSize = 10

// Lockpoint is one point of the speed to lock-percentage curve. Intensity is
// stored and persisted but not used by interpolation.
type Lockpoint struct {
	Speed     uint8
	Lock      uint8
	Intensity uint8
}

// LockpointTable is the bounded lockpoint collection together with its
// occupancy set. Mask has bit i set once slot i was received since the last
// Clear. Count counts receptions, not distinct slots: re-sending a slot
// increments it again, and it wraps like the 8-bit counter it models.
type LockpointTable struct {
	Points [TableSize]Lockpoint
	Mask   uint16
	Count  uint8
}

// Set writes slot index and records the reception. Indexes outside the table
// are ignored and Set reports false.
func (t *LockpointTable) Set(index uint8, lp Lockpoint) bool {
	if int(index) >= TableSize {
		return false
	}
	t.Points[index] = lp
	t.Mask |= 1 << index
	t.Count++
	return true
}

// Has reports whether slot i was received since the last Clear.
func (t *LockpointTable) Has(i int) bool {
	return i >= 0 && i < TableSize && t.Mask&(1<<uint(i)) != 0
}

// Clear zeroes every slot and resets the occupancy set and counter.
func (t *LockpointTable) Clear() {
	*t = LockpointTable{}
}

// Populated returns the entries interpolation considers: the first Count
// slots in array order, bounded by the table size.
func (t *LockpointTable) Populated() []Lockpoint {
	n := int(t.Count)
	if n > TableSize {
		n = TableSize
	}
	return t.Points[:n]
}
