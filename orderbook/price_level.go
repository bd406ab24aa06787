package orderbook

import "tickbook/domain"

// level is the FIFO queue of resting orders at one (side, price)
// head is the oldest order and matches first. prev/next links are stored in the
// location index slots, so a level is only 12 bytes and the whole price array
// stays small enough to allocate once.
type level struct {
	head  domain.ID
	tail  domain.ID
	count uint32
}

// Level is an aggregated view of one price level
type Level struct {
	Price    domain.Price
	Quantity uint32 // total resting quantity
	Orders   int    // number of resting orders
}

// pushBack appends an order to the tail of lvl
// Performance: O(1)
func (b *OrderBook) pushBack(lvl *level, id domain.ID, s *slot) {
	s.next = domain.NoID
	if lvl.count == 0 {
		s.prev = domain.NoID
		lvl.head = id
	} else {
		s.prev = lvl.tail
		b.index.slots[lvl.tail].next = id
	}
	lvl.tail = id
	lvl.count++
}

// unlink removes an order from lvl and invalidates its index slot
// Neighbours keep their relative order, so arrival priority survives a cancel.
// Performance: O(1)
func (b *OrderBook) unlink(lvl *level, s *slot) {
	if s.prev != domain.NoID {
		b.index.slots[s.prev].next = s.next
	} else {
		lvl.head = s.next
	}

	if s.next != domain.NoID {
		b.index.slots[s.next].prev = s.prev
	} else {
		lvl.tail = s.prev
	}

	s.prev = domain.NoID
	s.next = domain.NoID
	s.valid = false
	lvl.count--
}

// each visits the orders of lvl in priority order until fn returns false
func (b *OrderBook) each(lvl *level, fn func(s *slot) bool) {
	if lvl.count == 0 {
		return
	}
	for id := lvl.head; id != domain.NoID; {
		s := &b.index.slots[id]
		next := s.next
		if !fn(s) {
			return
		}
		id = next
	}
}
