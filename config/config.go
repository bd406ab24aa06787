package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tickbook/orderbook"
)

type Log struct {
	Level string `yaml:"level"`
}

type Book struct {
	// IndexCapacity is the number of order ids the location index is sized for up front
	IndexCapacity int `yaml:"index_capacity"`
	// MaxID is the largest order id the book accepts; larger ids are rejected
	MaxID         uint32 `yaml:"max_id"`
}

type Engine struct {
	CommandBufferSize int  `yaml:"command_buffer_size"` // power of 2
	TradeBufferSize   int  `yaml:"trade_buffer_size"`   // power of 2
	PublishTrades     bool `yaml:"publish_trades"`      // false: count matches only, nothing to drain
}

// Bench drives cmd/benchmark and cmd/profile
type Bench struct {
	Duration    time.Duration `yaml:"duration"`
	Producers   int           `yaml:"producers"`
	MidPrice    int           `yaml:"mid_price"`
	Spread      int           `yaml:"spread"` // ticks either side of MidPrice
	MaxQuantity int           `yaml:"max_quantity"`
	CancelRatio float64       `yaml:"cancel_ratio"` // fraction of commands that cancel a live order
	Seed        uint64        `yaml:"seed"`
}

type Config struct {
	Log    Log    `yaml:"log"`
	Book   Book   `yaml:"book"`
	Engine Engine `yaml:"engine"`
	Bench  Bench  `yaml:"bench"`
}

func Default() Config {
	return Config{
		Log:  Log{Level: "info"},
		Book: Book{
			IndexCapacity: orderbook.DefaultIndexCapacity,
			MaxID:         uint32(orderbook.DefaultMaxID),
		},
		Engine: Engine{
			CommandBufferSize: 1 << 16,
			TradeBufferSize:   1 << 16,
			PublishTrades:     true,
		},
		Bench: Bench{
			Duration:    5 * time.Second,
			Producers:   2,
			MidPrice:    30000,
			Spread:      100,
			MaxQuantity: 100,
			CancelRatio: 0.2,
			Seed:        1,
		},
	}
}

// Load builds the configuration
// Priority: ENV > .env file > YAML file at path (optional, "" skips it) > defaults
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TICKBOOK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TICKBOOK_INDEX_CAPACITY", &cfg.Book.IndexCapacity},
		{"TICKBOOK_COMMAND_BUFFER_SIZE", &cfg.Engine.CommandBufferSize},
		{"TICKBOOK_TRADE_BUFFER_SIZE", &cfg.Engine.TradeBufferSize},
		{"TICKBOOK_BENCH_PRODUCERS", &cfg.Bench.Producers},
		{"TICKBOOK_BENCH_MID_PRICE", &cfg.Bench.MidPrice},
		{"TICKBOOK_BENCH_SPREAD", &cfg.Bench.Spread},
		{"TICKBOOK_BENCH_MAX_QUANTITY", &cfg.Bench.MaxQuantity},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("TICKBOOK_PUBLISH_TRADES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TICKBOOK_PUBLISH_TRADES: %w", err)
		}
		cfg.Engine.PublishTrades = b
	}
	if v := os.Getenv("TICKBOOK_MAX_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("TICKBOOK_MAX_ID: %w", err)
		}
		cfg.Book.MaxID = uint32(id)
	}
	if v := os.Getenv("TICKBOOK_BENCH_CANCEL_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TICKBOOK_BENCH_CANCEL_RATIO: %w", err)
		}
		cfg.Bench.CancelRatio = r
	}
	if v := os.Getenv("TICKBOOK_BENCH_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICKBOOK_BENCH_DURATION: %w", err)
		}
		cfg.Bench.Duration = d
	}
	if v := os.Getenv("TICKBOOK_BENCH_SEED"); v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TICKBOOK_BENCH_SEED: %w", err)
		}
		cfg.Bench.Seed = s
	}
	return nil
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error
	if c.Book.IndexCapacity <= 0 {
		errs = append(errs, fmt.Errorf("book.index_capacity must be positive, got %d", c.Book.IndexCapacity))
	}
	if c.Book.MaxID == ^uint32(0) {
		errs = append(errs, fmt.Errorf("book.max_id %d is the reserved id", c.Book.MaxID))
	}
	if !powerOfTwo(c.Engine.CommandBufferSize) {
		errs = append(errs, fmt.Errorf("engine.command_buffer_size must be a power of 2, got %d", c.Engine.CommandBufferSize))
	}
	if !powerOfTwo(c.Engine.TradeBufferSize) {
		errs = append(errs, fmt.Errorf("engine.trade_buffer_size must be a power of 2, got %d", c.Engine.TradeBufferSize))
	}
	if c.Bench.Producers < 1 {
		errs = append(errs, fmt.Errorf("bench.producers must be at least 1, got %d", c.Bench.Producers))
	}
	if c.Bench.Spread < 0 || c.Bench.MidPrice-c.Bench.Spread < 0 || c.Bench.MidPrice+c.Bench.Spread > 65535 {
		errs = append(errs, fmt.Errorf("bench price band %d±%d leaves the price domain", c.Bench.MidPrice, c.Bench.Spread))
	}
	if c.Bench.MaxQuantity < 1 || c.Bench.MaxQuantity > 65535 {
		errs = append(errs, fmt.Errorf("bench.max_quantity must be in [1, 65535], got %d", c.Bench.MaxQuantity))
	}
	if c.Bench.CancelRatio < 0 || c.Bench.CancelRatio >= 1 {
		errs = append(errs, fmt.Errorf("bench.cancel_ratio must be in [0, 1), got %g", c.Bench.CancelRatio))
	}
	return errors.Join(errs...)
}
