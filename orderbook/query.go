package orderbook

import (
	"fmt"

	"tickbook/domain"
)

// The queries below exist for verification harnesses and diagnostics.
// They are correct but not tuned for the matching path.

// VolumeAtLevel returns the total resting quantity at (side, price)
// Performance: O(level depth)
func (b *OrderBook) VolumeAtLevel(side domain.Side, price domain.Price) uint32 {
	lvl := b.level(side, price)
	if lvl == nil {
		return 0
	}

	var total uint32
	b.each(lvl, func(s *slot) bool {
		total += uint32(s.order.Quantity)
		return true
	})
	return total
}

// Exists reports whether id is resting in the book
// Performance: O(1)
func (b *OrderBook) Exists(id domain.ID) bool {
	return b.index.get(id) != nil
}

// Lookup returns a copy of the resting order with the given id
// Returns domain.ErrNotFound for ids that are filled, cancelled or unknown.
func (b *OrderBook) Lookup(id domain.ID) (domain.Order, error) {
	s := b.index.get(id)
	if s == nil {
		return domain.Order{}, fmt.Errorf("lookup order %d: %w", id, domain.ErrNotFound)
	}
	return s.order, nil
}

// Len returns the number of resting orders on both sides
func (b *OrderBook) Len() int {
	return b.resting
}

// OrdersAt returns the resting orders at (side, price) in matching priority
func (b *OrderBook) OrdersAt(side domain.Side, price domain.Price) []domain.Order {
	lvl := b.level(side, price)
	if lvl == nil || lvl.count == 0 {
		return nil
	}

	orders := make([]domain.Order, 0, lvl.count)
	b.each(lvl, func(s *slot) bool {
		orders = append(orders, s.order)
		return true
	})
	return orders
}

// Depth returns up to maxLevels occupied levels of side, best price first
// Performance: O(price distance covered) array walk from the best-price marker
func (b *OrderBook) Depth(side domain.Side, maxLevels int) []Level {
	if maxLevels <= 0 {
		return nil
	}

	var depth []Level
	add := func(p int32, lvl *level) {
		if lvl.count == 0 {
			return
		}
		depth = append(depth, Level{
			Price:    domain.Price(p),
			Quantity: b.VolumeAtLevel(side, domain.Price(p)),
			Orders:   int(lvl.count),
		})
	}

	switch side {
	case domain.Buy:
		for p := b.bestBid; p >= 0 && len(depth) < maxLevels; p-- {
			add(p, &b.bids[p])
		}
	case domain.Sell:
		for p := b.bestAsk; p < noAsk && len(depth) < maxLevels; p++ {
			add(p, &b.asks[p])
		}
	}
	return depth
}
