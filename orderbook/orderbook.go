package orderbook

import (
	"tickbook/domain"
)

// IOrderBook defines the operations an external caller drives a book with
type IOrderBook interface {
	// Match crosses an incoming order against the book and rests the remainder
	Match(order domain.Order) (uint32, error)

	// SetQuantity overwrites a resting order's quantity, removing it when zero
	SetQuantity(id domain.ID, quantity domain.Quantity)

	// VolumeAtLevel returns the total resting quantity at one price on one side
	VolumeAtLevel(side domain.Side, price domain.Price) uint32

	// Lookup returns a resting order by id
	Lookup(id domain.ID) (domain.Order, error)

	// Exists reports whether an order is resting
	Exists(id domain.ID) bool
}

// DefaultIndexCapacity is the number of order ids the location index is sized for up front
const DefaultIndexCapacity = 1_000_000

// DefaultMaxID is the largest order id a book accepts unless WithMaxID says otherwise.
// It bounds how far the location index may grow.
const DefaultMaxID domain.ID = 16*DefaultIndexCapacity - 1

const (
	numLevels = int(domain.MaxPrice) + 1

	// noBid and noAsk are the best-price sentinels of an empty side.
	// Both lie outside the price domain so a resting order at price 0 or MaxPrice is unambiguous.
	noBid int32 = -1
	noAsk int32 = int32(numLevels)
)

// OrderBook implements a price-time priority book for a single instrument
// Architecture: one fixed array of price levels per side, indexed directly by price, plus
// an order location index keyed by order id. Each price level is an intrusive doubly
// linked list whose links live in the index, so cancel is O(1) and never reorders a level.
//
// Lock-free design: the book has no synchronization. Callers serialize all access,
// e.g. through matching.Engine which owns one book per goroutine.
type OrderBook struct {
	bids [numLevels]level
	asks [numLevels]level

	// bestBid is the highest price with a resting buy, noBid when there are none.
	// bestAsk is the lowest price with a resting sell, noAsk when there are none.
	bestBid int32
	bestAsk int32

	index   locationIndex
	maxID   domain.ID
	resting int
}

// Ensure OrderBook implements IOrderBook
var _ IOrderBook = (*OrderBook)(nil)

type options struct {
	indexCapacity int
	maxID         domain.ID
}

// Option configures a new OrderBook
type Option func(*options)

// WithIndexCapacity sizes the location index for ids in [0, n).
// Larger ids up to the maximum id still work but grow the index when they first rest.
func WithIndexCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.indexCapacity = n
		}
	}
}

// WithMaxID sets the largest accepted order id; Match rejects larger ids.
// NoID stays reserved, so id is clamped below it.
func WithMaxID(id domain.ID) Option {
	return func(o *options) {
		o.maxID = min(id, domain.NoID-1)
	}
}

// New creates an empty order book
// All per-price structures and the location index are allocated here, once.
func New(opts ...Option) *OrderBook {
	o := options{indexCapacity: DefaultIndexCapacity, maxID: DefaultMaxID}
	for _, opt := range opts {
		opt(&o)
	}

	return &OrderBook{
		bestBid: noBid,
		bestAsk: noAsk,
		index:   newLocationIndex(o.indexCapacity, int(o.maxID)+1),
		maxID:   o.maxID,
	}
}

// level returns the price level for (side, price), nil for an unknown side
func (b *OrderBook) level(side domain.Side, price domain.Price) *level {
	switch side {
	case domain.Buy:
		return &b.bids[price]
	case domain.Sell:
		return &b.asks[price]
	}
	return nil
}

// rest appends the unfilled remainder of an incoming order to its own level
func (b *OrderBook) rest(order domain.Order) {
	s := b.index.reserve(order.ID)
	s.order = order
	s.valid = true

	b.pushBack(b.level(order.Side, order.Price), order.ID, s)
	b.resting++
	b.extendBest(order.Side, order.Price)
}

// remove unlinks a resting order and restores the best-price marker of its side
func (b *OrderBook) remove(s *slot) {
	side, price := s.order.Side, s.order.Price
	lvl := b.level(side, price)

	b.unlink(lvl, s)
	b.resting--

	if lvl.count == 0 {
		b.vacate(side, price)
	}
}
