package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tickbook/domain"
)

// requireConsistent walks the whole book and checks every structural invariant:
// level links agree with the index, resting quantities are positive, the best-price
// markers equal the true extremal levels and the resting count is exact.
func requireConsistent(t *testing.T, b *OrderBook) {
	t.Helper()

	resting := 0
	bestBid, bestAsk := noBid, noAsk

	check := func(side domain.Side, p int32, lvl *level) {
		var n uint32
		prev := domain.NoID
		for id := lvl.head; lvl.count > 0 && id != domain.NoID; {
			s := b.index.get(id)
			require.NotNil(t, s, "order %d linked at %s %d but not valid in the index", id, side, p)
			require.Equal(t, side, s.order.Side)
			require.Equal(t, domain.Price(p), s.order.Price)
			require.NotZero(t, s.order.Quantity, "order %d rests with zero quantity", id)
			require.Equal(t, prev, s.prev, "broken back link at order %d", id)
			prev = id
			id = s.next
			n++
			require.LessOrEqual(t, n, lvl.count, "level %s %d has a cycle", side, p)
		}
		require.Equal(t, lvl.count, n, "level %s %d count mismatch", side, p)
		if n > 0 {
			require.Equal(t, prev, lvl.tail, "level %s %d tail mismatch", side, p)
		}
		resting += int(n)
	}

	for p := int32(0); p < noAsk; p++ {
		check(domain.Buy, p, &b.bids[p])
		check(domain.Sell, p, &b.asks[p])
		if b.bids[p].count > 0 {
			bestBid = p
		}
		if b.asks[p].count > 0 && bestAsk == noAsk {
			bestAsk = p
		}
	}

	valid := 0
	for i := range b.index.slots {
		if b.index.slots[i].valid {
			valid++
		}
	}

	require.Equal(t, bestBid, b.bestBid, "best bid marker")
	require.Equal(t, bestAsk, b.bestAsk, "best ask marker")
	require.Equal(t, resting, b.Len(), "resting count")
	require.Equal(t, resting, valid, "valid index slots")
	if bestBid != noBid && bestAsk != noAsk {
		require.Less(t, bestBid, bestAsk, "book is crossed")
	}
}
