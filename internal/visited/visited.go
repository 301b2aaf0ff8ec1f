// Package visited tracks the set of vertex ids seen during one beam search.
package visited

import "github.com/bits-and-blooms/bitset"

// VisitedSet is a per-query scratch bitset with a dirty list, so Reset only
// touches the (typically small) number of ids actually visited instead of
// the whole bitmap.
type VisitedSet struct {
	bits  *bitset.BitSet
	dirty []uint64
}

// New creates a VisitedSet sized for capacity ids.
func New(capacity int) *VisitedSet {
	return &VisitedSet{
		bits:  bitset.New(uint(capacity)),
		dirty: make([]uint64, 0, 128),
	}
}

// Visit marks id as visited.
func (v *VisitedSet) Visit(id uint64) {
	v.EnsureCapacity(int(id) + 1)
	if !v.bits.Test(uint(id)) {
		v.bits.Set(uint(id))
		v.dirty = append(v.dirty, id)
	}
}

// Visited reports whether id has been visited.
func (v *VisitedSet) Visited(id uint64) bool {
	if uint64(v.bits.Len()) <= id {
		return false
	}
	return v.bits.Test(uint(id))
}

// Reset clears the ids visited during the current session.
func (v *VisitedSet) Reset() {
	for _, id := range v.dirty {
		v.bits.Clear(uint(id))
	}
	v.dirty = v.dirty[:0]
}

// EnsureCapacity grows the backing bitset to hold at least capacity ids.
func (v *VisitedSet) EnsureCapacity(capacity int) {
	if uint64(v.bits.Len()) >= uint64(capacity) {
		return
	}
	grown := bitset.New(uint(capacity))
	for _, id := range v.dirty {
		grown.Set(uint(id))
	}
	v.bits = grown
}
