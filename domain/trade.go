package domain

import "fmt"

// Trade represents one pairing between an incoming (taker) order and a resting (maker) order
// Trades are plain values: the matching loop appends them into caller-owned buffers and
// publishes them by copy, so there is nothing to pool or destroy.
type Trade struct {
	Seq       uint64   // assigned by the dispatch loop, zero when produced by the book directly
	TakerID   ID       // incoming order
	MakerID   ID       // resting order
	Price     Price    // maker level price
	Quantity  Quantity // min(taker remaining, maker remaining)
	TakerSide Side
}

// NewTrade creates a trade at the maker's price
func NewTrade(taker Order, maker Order, quantity Quantity) Trade {
	return Trade{
		TakerID:   taker.ID,
		MakerID:   maker.ID,
		Price:     maker.Price,
		Quantity:  quantity,
		TakerSide: taker.Side,
	}
}

// BuyOrderID returns the id of the buying side of the trade
func (t Trade) BuyOrderID() ID {
	if t.TakerSide == Buy {
		return t.TakerID
	}
	return t.MakerID
}

// SellOrderID returns the id of the selling side of the trade
func (t Trade) SellOrderID() ID {
	if t.TakerSide == Sell {
		return t.TakerID
	}
	return t.MakerID
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{Seq=%d, taker=%d maker=%d, %s %d@%d}",
		t.Seq, t.TakerID, t.MakerID, t.TakerSide, t.Quantity, t.Price)
}
