package orderbook

import "tickbook/domain"

// BestBid returns the highest resting buy price
// Performance: O(1) - cached marker
func (b *OrderBook) BestBid() (domain.Price, bool) {
	if b.bestBid == noBid {
		return 0, false
	}
	return domain.Price(b.bestBid), true
}

// BestAsk returns the lowest resting sell price
// Performance: O(1) - cached marker
func (b *OrderBook) BestAsk() (domain.Price, bool) {
	if b.bestAsk == noAsk {
		return 0, false
	}
	return domain.Price(b.bestAsk), true
}

// extendBest moves the marker of side outward when a new order rests beyond it
func (b *OrderBook) extendBest(side domain.Side, price domain.Price) {
	p := int32(price)
	if side == domain.Buy {
		if p > b.bestBid {
			b.bestBid = p
		}
		return
	}
	if p < b.bestAsk {
		b.bestAsk = p
	}
}

// vacate restores the marker of side after the level at price became empty.
// Only the extremal level matters; emptying an interior level leaves the marker valid.
func (b *OrderBook) vacate(side domain.Side, price domain.Price) {
	p := int32(price)
	if side == domain.Buy {
		if p == b.bestBid {
			b.bestBid = b.scanBids(p - 1)
		}
		return
	}
	if p == b.bestAsk {
		b.bestAsk = b.scanAsks(p + 1)
	}
}

// scanBids returns the highest occupied buy level at or below from, noBid if none.
// Performance: O(distance) linear scan, only paid when the best level empties
func (b *OrderBook) scanBids(from int32) int32 {
	for p := from; p >= 0; p-- {
		if b.bids[p].count > 0 {
			return p
		}
	}
	return noBid
}

// scanAsks returns the lowest occupied sell level at or above from, noAsk if none.
// Performance: O(distance) linear scan, only paid when the best level empties
func (b *OrderBook) scanAsks(from int32) int32 {
	for p := from; p < noAsk; p++ {
		if b.asks[p].count > 0 {
			return p
		}
	}
	return noAsk
}
