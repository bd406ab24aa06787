package matching

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"tickbook/config"
	"tickbook/domain"
	"tickbook/metrics"
	"tickbook/orderbook"
)

// waitForCondition polls condition until it holds or timeout elapses
func waitForCondition(condition func() bool, timeout time.Duration, checkInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(checkInterval)
	}
	return false
}

func testConfig(publish bool) config.Config {
	cfg := config.Default()
	cfg.Book.IndexCapacity = 1 << 12
	cfg.Engine.CommandBufferSize = 1 << 10
	cfg.Engine.TradeBufferSize = 1 << 12
	cfg.Engine.PublishTrades = publish
	return cfg
}

func startEngine(t *testing.T, cfg config.Config, m *metrics.Metrics) *Engine {
	t.Helper()
	e := New(cfg, zaptest.NewLogger(t), m)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e
}

func TestEngineMatchesAndPublishesTrades(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, testConfig(true), nil)

	require.NoError(t, e.Submit(ctx, domain.NewOrder(1, domain.Sell, 100, 5)))
	require.NoError(t, e.Submit(ctx, domain.NewOrder(2, domain.Sell, 101, 5)))
	require.NoError(t, e.Submit(ctx, domain.NewOrder(3, domain.Buy, 101, 7)))

	first, err := e.Trades().Consume(ctx)
	require.NoError(t, err)
	second, err := e.Trades().Consume(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.Trade{Seq: 1, TakerID: 3, MakerID: 1, Price: 100, Quantity: 5, TakerSide: domain.Buy}, first)
	assert.Equal(t, domain.Trade{Seq: 2, TakerID: 3, MakerID: 2, Price: 101, Quantity: 2, TakerSide: domain.Buy}, second)

	require.NoError(t, e.Query(ctx, func(b *orderbook.OrderBook) {
		assert.False(t, b.Exists(1))
		assert.False(t, b.Exists(3))
		o, err := b.Lookup(2)
		require.NoError(t, err)
		assert.Equal(t, domain.Quantity(3), o.Quantity)
		ask, ok := b.BestAsk()
		assert.True(t, ok)
		assert.Equal(t, domain.Price(101), ask)
	}))
}

func TestEngineQuerySeesEarlierCommands(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, testConfig(false), nil)

	for i := 0; i < 500; i++ {
		require.NoError(t, e.Submit(ctx, domain.NewOrder(domain.ID(i), domain.Buy, domain.Price(1000+i%10), 1)))
	}
	require.NoError(t, e.Modify(ctx, 0, 0))
	require.NoError(t, e.Modify(ctx, 1, 9))

	var (
		resting int
		volume  uint32
	)
	require.NoError(t, e.Query(ctx, func(b *orderbook.OrderBook) {
		resting = b.Len()
		volume = b.VolumeAtLevel(domain.Buy, 1001)
	}))
	assert.Equal(t, 499, resting)
	assert.Equal(t, uint32(50-1+9), volume)
}

func TestEngineRejectsInvalidOrders(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := startEngine(t, testConfig(false), m)

	assert.ErrorIs(t, e.Submit(ctx, domain.NewOrder(1, domain.Buy, 10, 0)), domain.ErrInvalidOrder)
	assert.ErrorIs(t, e.Submit(ctx, domain.NewOrder(domain.NoID, domain.Buy, 10, 1)), domain.ErrInvalidOrder)

	// a duplicate resting id is only caught by the loop
	require.NoError(t, e.Submit(ctx, domain.NewOrder(7, domain.Buy, 10, 1)))
	require.NoError(t, e.Submit(ctx, domain.NewOrder(7, domain.Buy, 11, 1)))
	require.NoError(t, e.Query(ctx, func(b *orderbook.OrderBook) {
		assert.Equal(t, 1, b.Len())
		assert.Equal(t, uint32(0), b.VolumeAtLevel(domain.Buy, 11))
	}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestingOrders))
}

func TestEngineRejectsIDsAboveMaximum(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(false)
	cfg.Book.MaxID = 1000
	m := metrics.New(prometheus.NewRegistry())
	e := startEngine(t, cfg, m)

	require.NoError(t, e.Submit(ctx, domain.NewOrder(1000, domain.Sell, 10, 2)))
	require.NoError(t, e.Submit(ctx, domain.NewOrder(3_000_000_000, domain.Buy, 10, 1)))
	require.NoError(t, e.Query(ctx, func(b *orderbook.OrderBook) {
		assert.True(t, b.Exists(1000))
		assert.False(t, b.Exists(3_000_000_000))
		assert.Equal(t, uint32(2), b.VolumeAtLevel(domain.Sell, 10), "rejected order must not trade")
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal))
}

func TestEngineStop(t *testing.T) {
	e := New(testConfig(false), zaptest.NewLogger(t), nil)
	e.Stop() // not started: no-op

	e.Start(context.Background())
	e.Stop()
	<-e.Done()

	err := e.Query(context.Background(), func(*orderbook.OrderBook) {})
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestEngineStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(testConfig(true), zaptest.NewLogger(t), nil)
	e.Start(ctx)
	cancel()

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after context cancellation")
	}
}

// TestEngineConcurrentProducersConserveQuantity drives the loop from several producers
// while a consumer drains trades, then checks no quantity was created or lost
func TestEngineConcurrentProducersConserveQuantity(t *testing.T) {
	const (
		producers   = 4
		perProducer = 2000
	)
	cfg := testConfig(true)
	cfg.Book.IndexCapacity = producers * perProducer
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := startEngine(t, cfg, m)

	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()
	var (
		drained    atomic.Uint64
		tradedQty  atomic.Uint64
		lastSeq    atomic.Uint64
		seqOrdered atomic.Bool
	)
	seqOrdered.Store(true)
	go func() {
		batch := make([]domain.Trade, 64)
		for {
			n, err := e.Trades().ConsumeBatch(drainCtx, batch)
			if err != nil {
				return
			}
			for _, tr := range batch[:n] {
				if tr.Seq != lastSeq.Load()+1 {
					seqOrdered.Store(false)
				}
				lastSeq.Store(tr.Seq)
				tradedQty.Add(uint64(tr.Quantity))
			}
			drained.Add(uint64(n))
		}
	}()

	var submitted [producers]uint64
	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(p), 99))
			for i := 0; i < perProducer; i++ {
				side := domain.Buy
				if rng.IntN(2) == 0 {
					side = domain.Sell
				}
				qty := domain.Quantity(1 + rng.IntN(20))
				o := domain.NewOrder(domain.ID(p*perProducer+i), side, domain.Price(990+rng.IntN(20)), qty)
				if err := e.Submit(context.Background(), o); err != nil {
					return err
				}
				submitted[p] += uint64(qty)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var restingQty uint64
	require.NoError(t, e.Query(context.Background(), func(b *orderbook.OrderBook) {
		for _, side := range []domain.Side{domain.Buy, domain.Sell} {
			for _, lvl := range b.Depth(side, 64) {
				restingQty += uint64(lvl.Quantity)
			}
		}
	}))

	// every trade is published before the query runs; wait for the consumer to catch up
	published := e.seq.Current()
	require.True(t, waitForCondition(func() bool { return drained.Load() == published }, 5*time.Second, time.Millisecond))

	var total uint64
	for _, s := range submitted {
		total += s
	}
	assert.Equal(t, total, restingQty+2*tradedQty.Load(), "each traded unit leaves both a buy and a sell")
	assert.True(t, seqOrdered.Load(), "trade sequence numbers are contiguous")
	assert.Equal(t, float64(producers*perProducer), testutil.ToFloat64(m.OrdersTotal))
	assert.Equal(t, float64(published), testutil.ToFloat64(m.TradesTotal))
}
