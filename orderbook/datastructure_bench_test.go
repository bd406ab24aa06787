package orderbook

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"tickbook/domain"
)

// feed is a pre-generated order flow so the benchmarks measure the book, not the generator
type feed struct {
	orders  []domain.Order
	cancels []domain.ID
}

// newFeed creates n orders around a mid price with a spread of width ticks.
// Roughly one in five steps also cancels an earlier order.
func newFeed(n int, width int) feed {
	rng := rand.New(rand.NewPCG(1, 2))
	f := feed{orders: make([]domain.Order, n)}
	for i := range f.orders {
		side := domain.Buy
		offset := rng.IntN(width)
		price := 30000 - offset + width/2
		if rng.IntN(2) == 0 {
			side = domain.Sell
			price = 30000 + offset - width/2
		}
		f.orders[i] = domain.NewOrder(domain.ID(i), side, domain.Price(price), domain.Quantity(1+rng.IntN(100)))
		if i > 0 && rng.IntN(5) == 0 {
			f.cancels = append(f.cancels, domain.ID(rng.IntN(i)))
		}
	}
	return f
}

func (f feed) run(b *OrderBook) {
	c := 0
	for i, o := range f.orders {
		_, _ = b.Match(o)
		if c < len(f.cancels) && i%5 == 4 {
			b.SetQuantity(f.cancels[c], 0)
			c++
		}
	}
}

// BenchmarkMatchFeed measures a mixed flow of crossing, resting and cancelling orders
func BenchmarkMatchFeed(b *testing.B) {
	for _, width := range []int{10, 100, 1000} {
		f := newFeed(100_000, width)
		b.Run("width="+strconv.Itoa(width), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				book := New(WithIndexCapacity(len(f.orders)))
				b.StartTimer()
				f.run(book)
			}
		})
	}
}

// BenchmarkRestAndCancel measures the insert + O(1) cancel round trip at a deep level
func BenchmarkRestAndCancel(b *testing.B) {
	book := New(WithIndexCapacity(1 << 20))
	for i := 0; i < 1000; i++ {
		_, _ = book.Match(domain.NewOrder(domain.ID(i), domain.Buy, 100, 1))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := domain.ID(1000 + i%(1<<19))
		_, _ = book.Match(domain.NewOrder(id, domain.Buy, 100, 1))
		book.SetQuantity(id, 0)
	}
}

// BenchmarkVolumeAtLevel measures the O(depth) query on a level with 1000 orders
func BenchmarkVolumeAtLevel(b *testing.B) {
	book := New(WithIndexCapacity(2048))
	for i := 0; i < 1000; i++ {
		_, _ = book.Match(domain.NewOrder(domain.ID(i), domain.Sell, 500, 3))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if book.VolumeAtLevel(domain.Sell, 500) != 3000 {
			b.Fatal("unexpected volume")
		}
	}
}
