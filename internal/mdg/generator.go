package mdg

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"simexchange/internal/model"
)

// Consumer receives generated bars.
type Consumer interface {
	UpdateMarketData(bar model.Bar) error
}

// GeneratorConfig shapes the synthetic market.
type GeneratorConfig struct {
	Symbols   []string
	Start     time.Time
	Interval  time.Duration
	BasePrice decimal.Decimal
	// BaseSize is the mean size of one synthetic trade, in whole units.
	BaseSize int64
	// TradesPerBar is the number of synthetic trades aggregated into a bar.
	TradesPerBar int
	// StepBps bounds the per-trade price move in basis points.
	StepBps int64
	Seed    int64
}

// Generator creates synthetic bars by aggregating random-walk trades.
// The same config always yields the same sequence.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	prices []decimal.Decimal
	index  int
	round  int
}

// NewGenerator validates the config and creates a generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("generator has no symbols")
	}
	if !cfg.BasePrice.IsPositive() {
		return nil, fmt.Errorf("generator base price must be > 0")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Truncate(cfg.Interval)
	}
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 100
	}
	if cfg.TradesPerBar <= 0 {
		cfg.TradesPerBar = 20
	}
	if cfg.StepBps <= 0 {
		cfg.StepBps = 5
	}

	prices := make([]decimal.Decimal, len(cfg.Symbols))
	for i := range prices {
		prices[i] = cfg.BasePrice
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		prices: prices,
	}, nil
}

// Next creates the next bar. Symbols are visited round-robin; the timestamp
// advances by one interval after every symbol got a bar.
func (g *Generator) Next() model.Bar {
	i := g.index
	ts := g.cfg.Start.Add(time.Duration(g.round) * g.cfg.Interval)
	g.index++
	if g.index == len(g.cfg.Symbols) {
		g.index = 0
		g.round++
	}

	trades := make([]Trade, g.cfg.TradesPerBar)
	price := g.prices[i]
	for j := range trades {
		bps := g.rng.Int63n(2*g.cfg.StepBps+1) - g.cfg.StepBps
		price = price.Add(price.Mul(decimal.New(bps, -4))).Round(4)
		if !price.IsPositive() {
			price = g.cfg.BasePrice
		}
		trades[j] = Trade{
			Price: price,
			Size:  decimal.NewFromInt(1 + g.rng.Int63n(2*g.cfg.BaseSize)),
		}
	}
	g.prices[i] = price

	bar, err := Aggregate(g.cfg.Symbols[i], ts, trades, 8)
	if err != nil {
		// generated trades are always positive
		panic(err)
	}
	return bar
}

// Run pushes rounds*len(symbols) bars into the consumer. Rejected bars are
// logged and counted.
func (g *Generator) Run(ctx context.Context, rounds int, consumer Consumer) (applied, rejected int, err error) {
	total := rounds * len(g.cfg.Symbols)
	for range total {
		if err := ctx.Err(); err != nil {
			return applied, rejected, err
		}
		bar := g.Next()
		if err := consumer.UpdateMarketData(bar); err != nil {
			rejected++
			logs.Errorf("synthetic bar rejected, symbol: %s, ts: %s, err: %+v", bar.Symbol, bar.Timestamp, err)
			continue
		}
		applied++
	}
	return applied, rejected, nil
}
