package orderbook

import (
	"fmt"

	"tickbook/domain"
)

// sweep carries the taker's state across the price levels it crosses
type sweep struct {
	taker     domain.Order
	remaining domain.Quantity
	count     uint32
	record    bool
	trades    []domain.Trade
}

// Match crosses an incoming order against the opposite side and rests any remainder
// Returns the number of pairings with resting orders, counting partial fills.
// Invalid input (zero quantity, reserved id, id above the book maximum, unknown side,
// id already resting) is rejected with domain.ErrInvalidOrder and leaves the book untouched.
//
// Performance: no allocation unless the remainder rests beyond the index capacity
func (b *OrderBook) Match(order domain.Order) (uint32, error) {
	_, count, err := b.match(order, nil, false)
	return count, err
}

// MatchTrades is Match with per-pairing detail
// One domain.Trade per pairing is appended to dst, which is returned grown. Passing a
// buffer with spare capacity keeps the call allocation free.
func (b *OrderBook) MatchTrades(order domain.Order, dst []domain.Trade) ([]domain.Trade, uint32, error) {
	return b.match(order, dst, true)
}

func (b *OrderBook) match(order domain.Order, dst []domain.Trade, record bool) ([]domain.Trade, uint32, error) {
	if err := order.Validate(); err != nil {
		return dst, 0, err
	}
	if order.ID > b.maxID {
		return dst, 0, fmt.Errorf("%w: order id %d exceeds the book maximum %d", domain.ErrInvalidOrder, order.ID, b.maxID)
	}
	if b.index.get(order.ID) != nil {
		return dst, 0, fmt.Errorf("%w: order %d is already resting", domain.ErrInvalidOrder, order.ID)
	}

	sw := sweep{
		taker:     order,
		remaining: order.Quantity,
		record:    record,
		trades:    dst,
	}

	if order.Side == domain.Buy {
		b.sweepAsks(&sw)
	} else {
		b.sweepBids(&sw)
	}

	if sw.remaining > 0 {
		order.Quantity = sw.remaining
		b.rest(order)
	}

	return sw.trades, sw.count, nil
}

// sweepAsks walks sell levels upward from the best ask while they cross the buy limit
// Every level left behind is empty, so the best ask jumps straight to where the walk stopped.
func (b *OrderBook) sweepAsks(sw *sweep) {
	limit := int32(sw.taker.Price)
	p := b.bestAsk
	for sw.remaining > 0 && p <= limit {
		lvl := &b.asks[p]
		if lvl.count > 0 {
			b.fillLevel(lvl, sw)
			if lvl.count > 0 {
				break
			}
		}
		p++
	}

	if p > b.bestAsk {
		b.bestAsk = b.scanAsks(p)
	}
}

// sweepBids walks buy levels downward from the best bid while they cross the sell limit
func (b *OrderBook) sweepBids(sw *sweep) {
	limit := int32(sw.taker.Price)
	p := b.bestBid
	for sw.remaining > 0 && p >= limit {
		lvl := &b.bids[p]
		if lvl.count > 0 {
			b.fillLevel(lvl, sw)
			if lvl.count > 0 {
				break
			}
		}
		p--
	}

	if p < b.bestBid {
		b.bestBid = b.scanBids(p)
	}
}

// fillLevel consumes resting orders of lvl in FIFO order
// A maker filled to zero is unlinked before moving on, and the walk continues from
// the maker that followed it, so no resting order is skipped.
func (b *OrderBook) fillLevel(lvl *level, sw *sweep) {
	for id := lvl.head; id != domain.NoID && sw.remaining > 0; {
		maker := &b.index.slots[id]
		next := maker.next

		qty := min(sw.remaining, maker.order.Quantity)
		sw.remaining -= qty
		maker.order.Quantity -= qty
		sw.count++

		if sw.record {
			sw.trades = append(sw.trades, domain.NewTrade(sw.taker, maker.order, qty))
		}

		if maker.order.Quantity == 0 {
			b.unlink(lvl, maker)
			b.resting--
		}

		id = next
	}
}
