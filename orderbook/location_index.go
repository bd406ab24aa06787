package orderbook

import "tickbook/domain"

// slot is the location index entry of one order id
// A valid slot holds the resting order itself plus its links inside the price level,
// which is everything cancel and modify need to find it without scanning.
type slot struct {
	order domain.Order
	prev  domain.ID
	next  domain.ID
	valid bool
}

// locationIndex maps order ids to slots by direct indexing
// The zero slot is invalid, so ids that never rested are absent by construction.
type locationIndex struct {
	slots []slot
	limit int // slots never grow past this
}

func newLocationIndex(capacity, limit int) locationIndex {
	return locationIndex{slots: make([]slot, min(capacity, limit)), limit: limit}
}

// get returns the slot of a resting order, nil if id is not resting
// Performance: O(1)
func (ix *locationIndex) get(id domain.ID) *slot {
	if uint64(id) >= uint64(len(ix.slots)) {
		return nil
	}
	s := &ix.slots[id]
	if !s.valid {
		return nil
	}
	return s
}

// reserve returns the slot for id, growing the index when id lies beyond it
// Growth doubles the capacity, capped at limit, so ids arriving in increasing order are amortised O(1).
// Callers keep id below limit.
// Slot pointers taken before a reserve must not be used after it.
func (ix *locationIndex) reserve(id domain.ID) *slot {
	if n := int(id) + 1; n > len(ix.slots) {
		size := min(max(2*len(ix.slots), n), ix.limit)
		grown := make([]slot, size)
		copy(grown, ix.slots)
		ix.slots = grown
	}
	return &ix.slots[id]
}
