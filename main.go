package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tickbook/config"
	"tickbook/domain"
	"tickbook/logging"
	"tickbook/matching"
	"tickbook/metrics"
	"tickbook/orderbook"
)

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := matching.New(cfg, logger, metrics.New(prometheus.NewRegistry()))
	engine.Start(ctx)
	defer engine.Stop()

	// Listen for trades
	go func() {
		for {
			trade, err := engine.Trades().Consume(ctx)
			if err != nil {
				return
			}
			logger.Info("trade executed",
				zap.Uint64("seq", trade.Seq),
				zap.Uint32("buy_id", uint32(trade.BuyOrderID())),
				zap.Uint32("sell_id", uint32(trade.SellOrderID())),
				zap.Uint16("price", uint16(trade.Price)),
				zap.Uint16("quantity", uint16(trade.Quantity)))
		}
	}()

	steps := []struct {
		name string
		run  func() error
	}{
		{"A: buy 10@100 rests", func() error {
			return engine.Submit(ctx, domain.NewOrder(1, domain.Buy, 100, 10))
		}},
		{"B: sell 4@90 partially fills order 1", func() error {
			return engine.Submit(ctx, domain.NewOrder(2, domain.Sell, 90, 4))
		}},
		{"C: sell 10@100 takes the rest of order 1", func() error {
			return engine.Submit(ctx, domain.NewOrder(3, domain.Sell, 100, 10))
		}},
		{"D: cancel order 3", func() error {
			return engine.Modify(ctx, 3, 0)
		}},
		{"E: modify unknown order 999", func() error {
			return engine.Modify(ctx, 999, 0)
		}},
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			logger.Error("step failed", zap.String("step", s.name), zap.Error(err))
			return
		}
		if err := engine.Query(ctx, func(b *orderbook.OrderBook) { logBook(logger, s.name, b) }); err != nil {
			logger.Error("query failed", zap.String("step", s.name), zap.Error(err))
			return
		}
	}
}

func logBook(logger *zap.Logger, step string, b *orderbook.OrderBook) {
	fields := []zap.Field{zap.String("step", step), zap.Int("resting", b.Len())}
	if p, ok := b.BestBid(); ok {
		fields = append(fields, zap.Uint16("best_bid", uint16(p)), zap.Uint32("bid_volume", b.VolumeAtLevel(domain.Buy, p)))
	}
	if p, ok := b.BestAsk(); ok {
		fields = append(fields, zap.Uint16("best_ask", uint16(p)), zap.Uint32("ask_volume", b.VolumeAtLevel(domain.Sell, p)))
	}
	for _, id := range []domain.ID{1, 2, 3} {
		if o, err := b.Lookup(id); err == nil {
			fields = append(fields, zap.Stringer("order", o))
		}
	}
	logger.Info("book state", fields...)
}
