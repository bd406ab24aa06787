package orderbook

import "tickbook/domain"

// SetQuantity overwrites the quantity of a resting order
// quantity == 0 removes the order: it leaves its level, its index slot is invalidated and
// the best price of its side is restored if the level it vacated was the best one.
// A positive quantity is written in place; the order keeps its position, even on increase.
//
// Unknown, filled or cancelled ids are a silent no-op.
// Performance: O(1), plus the best-price scan when the best level empties
func (b *OrderBook) SetQuantity(id domain.ID, quantity domain.Quantity) {
	s := b.index.get(id)
	if s == nil {
		return
	}

	if quantity == 0 {
		b.remove(s)
		return
	}
	s.order.Quantity = quantity
}

// Cancel removes a resting order, reporting whether there was one
func (b *OrderBook) Cancel(id domain.ID) bool {
	s := b.index.get(id)
	if s == nil {
		return false
	}
	b.remove(s)
	return true
}
