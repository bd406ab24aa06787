package matching

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"

	"tickbook/config"
	"tickbook/domain"
	"tickbook/metrics"
	"tickbook/orderbook"
)

// ErrEngineStopped is returned to callers waiting on a loop that has exited
var ErrEngineStopped = errors.New("matching engine stopped")

// batchSize is the number of commands the loop takes from the ring per wakeup
const batchSize = 128

type commandKind uint8

const (
	cmdSubmit commandKind = iota
	cmdModify
	cmdQuery
)

// command is one unit of work for the matching loop
type command struct {
	kind     commandKind
	order    domain.Order               // cmdSubmit
	id       domain.ID                  // cmdModify
	quantity domain.Quantity            // cmdModify
	fn       func(*orderbook.OrderBook) // cmdQuery
	reply    chan struct{}              // cmdQuery, closed once fn has run
}

// Engine runs the matching loop for ONE order book
// Architecture:
//   - The book is owned by a single goroutine locked to an OS thread; nothing else touches it
//   - Producers hand commands over through a bounded MPSC ring buffer
//   - Trades, stamped with a sequence number, leave through a second ring buffer
//   - Reads go through Query, which runs a function inside the loop between two commands
type Engine struct {
	book     *orderbook.OrderBook
	commands *RingBuffer[command]
	trades   *RingBuffer[domain.Trade]
	seq      *SequenceGenerator

	publishTrades bool
	scratch       []domain.Trade // reused by every submit, loop only

	logger  *zap.Logger
	metrics *metrics.Metrics

	cancel context.CancelFunc
	done   chan struct{} // closed when the loop exits
}

// New creates an engine and its book. m may be nil.
func New(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		book: orderbook.New(
			orderbook.WithIndexCapacity(cfg.Book.IndexCapacity),
			orderbook.WithMaxID(domain.ID(cfg.Book.MaxID)),
		),
		commands:      NewRingBuffer[command](cfg.Engine.CommandBufferSize),
		trades:        NewRingBuffer[domain.Trade](cfg.Engine.TradeBufferSize),
		seq:           NewSequenceGenerator(0),
		publishTrades: cfg.Engine.PublishTrades,
		scratch:       make([]domain.Trade, 0, 64),
		logger:        logger,
		metrics:       m,
		done:          make(chan struct{}),
	}
}

// Start starts the matching loop in a dedicated goroutine
// The loop exits when ctx is cancelled or Stop is called. Start must be called once.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	go func() {
		// Lock this goroutine to an OS thread to keep the book hot in one core's cache
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(e.done)

		e.logger.Info("matching loop started",
			zap.Int("command_buffer", e.commands.Cap()),
			zap.Int("trade_buffer", e.trades.Cap()),
			zap.Bool("publish_trades", e.publishTrades))

		var batch [batchSize]command
		for {
			n, err := e.commands.ConsumeBatch(ctx, batch[:])
			if err != nil {
				e.logger.Info("matching loop stopped",
					zap.Uint64("last_trade_seq", e.seq.Current()),
					zap.Int("resting", e.book.Len()))
				return
			}
			for i := 0; i < n; i++ {
				if err := e.execute(ctx, &batch[i]); err != nil {
					return
				}
				batch[i] = command{}
			}
		}
	}()
}

// Stop stops the matching loop and waits for it to exit
// Commands still queued are dropped.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Done is closed once the matching loop has exited
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Submit queues an order for matching
// Malformed orders are rejected here; an id that is already resting is only detected by the
// loop, which drops the order and counts it as rejected.
func (e *Engine) Submit(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	return e.commands.Publish(ctx, command{kind: cmdSubmit, order: order})
}

// Modify queues a quantity change for a resting order; zero cancels it
func (e *Engine) Modify(ctx context.Context, id domain.ID, quantity domain.Quantity) error {
	return e.commands.Publish(ctx, command{kind: cmdModify, id: id, quantity: quantity})
}

// Query runs fn on the matching goroutine and waits for it to return
// fn sees every command queued before the call and must not retain the book.
func (e *Engine) Query(ctx context.Context, fn func(*orderbook.OrderBook)) error {
	reply := make(chan struct{})
	if err := e.commands.Publish(ctx, command{kind: cmdQuery, fn: fn, reply: reply}); err != nil {
		return err
	}

	select {
	case <-reply:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trades returns the outgoing trade queue
// With PublishTrades enabled someone must drain it, or the loop blocks once it is full.
func (e *Engine) Trades() *RingBuffer[domain.Trade] {
	return e.trades
}

// execute applies one command to the book (matching goroutine only)
// A non-nil error means the loop context ended while publishing trades.
func (e *Engine) execute(ctx context.Context, c *command) error {
	switch c.kind {
	case cmdSubmit:
		return e.submit(ctx, c.order)
	case cmdModify:
		e.book.SetQuantity(c.id, c.quantity)
		e.metrics.ObserveModify()
		e.metrics.SetResting(e.book.Len())
	case cmdQuery:
		c.fn(e.book)
		close(c.reply)
	}
	return nil
}

func (e *Engine) submit(ctx context.Context, order domain.Order) error {
	var (
		trades  []domain.Trade
		matches uint32
		err     error
	)

	start := time.Now()
	if e.publishTrades {
		trades, matches, err = e.book.MatchTrades(order, e.scratch[:0])
		e.scratch = trades
	} else {
		matches, err = e.book.Match(order)
	}
	e.metrics.ObserveMatch(time.Since(start), matches, err)

	if err != nil {
		e.logger.Debug("order rejected", zap.Stringer("order", order), zap.Error(err))
		return nil
	}

	for i := range trades {
		trades[i].Seq = e.seq.Next()
		if err := e.trades.Publish(ctx, trades[i]); err != nil {
			return err
		}
	}
	e.metrics.SetResting(e.book.Len())
	return nil
}
