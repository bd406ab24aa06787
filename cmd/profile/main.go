package main

import (
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"tickbook/config"
	"tickbook/domain"
	"tickbook/logging"
	"tickbook/orderbook"
)

// feedSize is the number of pre-generated commands replayed against the book
const feedSize = 1 << 20

type step struct {
	order  domain.Order
	cancel bool
}

func main() {
	cfg, err := config.Load(os.Getenv("TICKBOOK_CONFIG"))
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Generate the feed before profiling so only the book shows up in the profile
	feed := newFeed(cfg.Bench)
	book := orderbook.New(orderbook.WithIndexCapacity(max(cfg.Book.IndexCapacity, feedSize)))

	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		logger.Error("create profile", zap.Error(err))
		return
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		logger.Error("start profile", zap.Error(err))
		return
	}
	logger.Info("profiling", zap.String("file", "cpu.prof"), zap.Duration("duration", cfg.Bench.Duration))

	var (
		orders  int64
		matches uint64
		rounds  int
	)
	startTime := time.Now()
	for time.Since(startTime) < cfg.Bench.Duration {
		for i := range feed {
			s := &feed[i]
			if s.cancel {
				book.SetQuantity(s.order.ID, 0)
				continue
			}
			n, err := book.Match(s.order)
			if err != nil {
				continue
			}
			matches += uint64(n)
			orders++
		}
		rounds++
		// replaying the same ids needs an empty book
		book = orderbook.New(orderbook.WithIndexCapacity(feedSize))
	}
	elapsed := time.Since(startTime)
	pprof.StopCPUProfile()

	logger.Info("profile finished",
		zap.Int("rounds", rounds),
		zap.Int64("orders", orders),
		zap.Uint64("matches", matches),
		zap.Float64("orders_per_sec", float64(orders)/elapsed.Seconds()),
		zap.String("inspect", "go tool pprof -http=:8080 cpu.prof"))
}

func newFeed(bench config.Bench) []step {
	rng := rand.New(rand.NewPCG(bench.Seed, 0))
	feed := make([]step, 0, feedSize)
	for id := domain.ID(0); len(feed) < feedSize; id++ {
		if id > 0 && rng.Float64() < bench.CancelRatio {
			victim := domain.ID(rng.Uint32N(uint32(id)))
			feed = append(feed, step{order: domain.Order{ID: victim}, cancel: true})
		}
		side := domain.Buy
		if rng.IntN(2) == 0 {
			side = domain.Sell
		}
		offset := rng.IntN(2*bench.Spread+1) - bench.Spread
		feed = append(feed, step{order: domain.NewOrder(
			id,
			side,
			domain.Price(bench.MidPrice+offset),
			domain.Quantity(1+rng.IntN(bench.MaxQuantity)),
		)})
	}
	return feed[:feedSize]
}
