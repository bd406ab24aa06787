package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tickbook/config"
	"tickbook/domain"
	"tickbook/logging"
	"tickbook/matching"
	"tickbook/metrics"
	"tickbook/orderbook"
)

// maxTracked bounds the per-producer set of ids that may still rest
const maxTracked = 1 << 14

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

	reg := prometheus.NewRegistry()
	engine := matching.New(cfg, logger, metrics.New(reg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	engine.Start(ctx)

	logger.Info("benchmark starting",
		zap.Duration("duration", cfg.Bench.Duration),
		zap.Int("producers", cfg.Bench.Producers),
		zap.Int("mid_price", cfg.Bench.MidPrice),
		zap.Int("spread", cfg.Bench.Spread),
		zap.Float64("cancel_ratio", cfg.Bench.CancelRatio))

	var (
		orderCount  atomic.Int64
		cancelCount atomic.Int64
		tradeCount  atomic.Int64
	)

	drainCtx, stopDrain := context.WithCancel(ctx)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if !cfg.Engine.PublishTrades {
			return
		}
		batch := make([]domain.Trade, 256)
		for {
			n, err := engine.Trades().ConsumeBatch(drainCtx, batch)
			if err != nil {
				return
			}
			tradeCount.Add(int64(n))
		}
	}()

	runCtx, cancelRun := context.WithTimeout(ctx, cfg.Bench.Duration)
	defer cancelRun()

	startTime := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for p := 0; p < cfg.Bench.Producers; p++ {
		g.Go(func() error {
			return produce(gctx, engine, cfg.Bench, domain.ID(cfg.Book.MaxID), p, &orderCount, &cancelCount)
		})
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
			elapsed := time.Since(startTime).Seconds()
			logger.Info("progress",
				zap.Int64("orders", orderCount.Load()),
				zap.Float64("orders_per_sec", float64(orderCount.Load())/elapsed),
				zap.Int64("trades", tradeCount.Load()))
		}
	}()

	if err := g.Wait(); err != nil && ctx.Err() == nil && runCtx.Err() == nil {
		logger.Error("producer failed", zap.Error(err))
	}
	cancelRun()

	// the query runs after everything the producers queued
	var bids, asks []orderbook.Level
	var resting int
	if err := engine.Query(ctx, func(b *orderbook.OrderBook) {
		bids = b.Depth(domain.Buy, 5)
		asks = b.Depth(domain.Sell, 5)
		resting = b.Len()
	}); err != nil {
		logger.Warn("final book query failed", zap.Error(err))
	}
	elapsed := time.Since(startTime)

	engine.Stop()
	stopDrain()
	<-drained

	orders := orderCount.Load()
	logger.Info("benchmark finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("orders", orders),
		zap.Int64("cancels", cancelCount.Load()),
		zap.Int64("trades_drained", tradeCount.Load()),
		zap.Float64("orders_per_sec", float64(orders)/elapsed.Seconds()),
		zap.Float64("avg_us_per_order", elapsed.Seconds()*1e6/float64(max(orders, 1))),
		zap.Int("resting", resting))

	for i, lvl := range bids {
		logger.Info("bid level", zap.Int("rank", i+1), zap.Uint16("price", uint16(lvl.Price)),
			zap.Uint32("quantity", lvl.Quantity), zap.Int("orders", lvl.Orders))
	}
	for i, lvl := range asks {
		logger.Info("ask level", zap.Int("rank", i+1), zap.Uint16("price", uint16(lvl.Price)),
			zap.Uint32("quantity", lvl.Quantity), zap.Int("orders", lvl.Orders))
	}

	logMetrics(logger, reg)
}

// produce submits orders around the mid price until ctx ends
// Producer p owns ids p, p+n, p+2n, ... up to maxID and cancels only its own orders.
func produce(ctx context.Context, engine *matching.Engine, bench config.Bench, maxID domain.ID, p int, orders, cancels *atomic.Int64) error {
	rng := rand.New(rand.NewPCG(bench.Seed, uint64(p)))
	step := uint64(bench.Producers)

	// ids that may still rest; filled ones are found out when their cancel is a no-op
	live := rbt.New[domain.ID, struct{}]()

	for next := uint64(p); next <= uint64(maxID); next += step {
		if ctx.Err() != nil {
			return nil
		}

		if live.Size() > 0 && rng.Float64() < bench.CancelRatio {
			lo, hi := live.Left().Key, live.Right().Key
			pick := lo + domain.ID(rng.Uint64N(uint64(hi-lo)+1))
			if node, found := live.Ceiling(pick); found {
				live.Remove(node.Key)
				if err := engine.Modify(ctx, node.Key, 0); err != nil {
					return err
				}
				cancels.Add(1)
				continue
			}
		}

		side := domain.Buy
		if rng.IntN(2) == 0 {
			side = domain.Sell
		}
		offset := rng.IntN(2*bench.Spread+1) - bench.Spread
		order := domain.NewOrder(
			domain.ID(next),
			side,
			domain.Price(bench.MidPrice+offset),
			domain.Quantity(1+rng.IntN(bench.MaxQuantity)),
		)
		if err := engine.Submit(ctx, order); err != nil {
			return err
		}
		orders.Add(1)

		live.Put(order.ID, struct{}{})
		if live.Size() > maxTracked {
			live.Remove(live.Left().Key)
		}
	}
	return nil
}

func logMetrics(logger *zap.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				logger.Info("metric", zap.String("name", mf.GetName()), zap.Float64("value", m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				logger.Info("metric", zap.String("name", mf.GetName()), zap.Float64("value", m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				mean := 0.0
				if h.GetSampleCount() > 0 {
					mean = h.GetSampleSum() / float64(h.GetSampleCount())
				}
				logger.Info("metric", zap.String("name", mf.GetName()),
					zap.Uint64("count", h.GetSampleCount()), zap.Float64("mean", mean))
			}
		}
	}
}
