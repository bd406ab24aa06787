package domain

import "fmt"

// ID identifies an order. Assigned by the caller and never reused while the order rests.
type ID uint32

// Price is an integer tick in [0, MaxPrice]
type Price uint16

// Quantity is a number of units
type Quantity uint16

// MaxPrice is the upper bound of the price domain (inclusive)
const MaxPrice Price = 1<<16 - 1

// NoID is reserved as the nil link inside price levels and is never a valid order id
const NoID ID = 1<<32 - 1

// Side represents the order side (Buy or Sell)
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// Opposite returns the side an order of this side crosses against
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is Buy or Sell
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Order represents a limit order
// Memory layout: 12 bytes with padding, small enough to be copied by value on the hot path.
// Immutable except Quantity, which decreases on fills and is overwritten on modify.
type Order struct {
	ID       ID
	Price    Price
	Quantity Quantity
	Side     Side
}

// NewOrder creates a new limit order
func NewOrder(id ID, side Side, price Price, quantity Quantity) Order {
	return Order{
		ID:       id,
		Price:    price,
		Quantity: quantity,
		Side:     side,
	}
}

// Validate checks the caller contract for an incoming order.
// Price needs no check: every Price value lies inside the domain.
func (o Order) Validate() error {
	if o.ID == NoID {
		return fmt.Errorf("%w: id %d is reserved", ErrInvalidOrder, o.ID)
	}
	if o.Quantity == 0 {
		return fmt.Errorf("%w: order %d has zero quantity", ErrInvalidOrder, o.ID)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: order %d has %s", ErrInvalidOrder, o.ID, o.Side)
	}
	return nil
}

// Crosses reports whether o is willing to trade at the resting price p
func (o Order) Crosses(p Price) bool {
	if o.Side == Buy {
		return p <= o.Price
	}
	return p >= o.Price
}

func (o Order) String() string {
	return fmt.Sprintf("Order{ID=%d, %s %d@%d}", o.ID, o.Side, o.Quantity, o.Price)
}
