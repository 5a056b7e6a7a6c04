package exchange

import (
	"github.com/shopspring/decimal"

	"simexchange/internal/obs"
)

const (
	defaultPricePlaces int32 = 8
)

var defaultParticipationRate = decimal.New(1, -1)

// MarketConfig controls how a market sizes and prices fills.
type MarketConfig struct {
	// DefaultParticipationRate applies to orders submitted without a rate.
	DefaultParticipationRate decimal.Decimal
	// QuantityPlaces is the number of decimal places a fill quantity keeps;
	// the pacing allowance is truncated to it. Zero means whole units.
	QuantityPlaces int32
	// PricePlaces is the rounding precision of reported average prices.
	PricePlaces int32
}

// DefaultMarketConfig returns whole-unit fills at a 10% participation rate.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		DefaultParticipationRate: defaultParticipationRate,
		QuantityPlaces:           0,
		PricePlaces:              defaultPricePlaces,
	}
}

func (c MarketConfig) withDefaults() MarketConfig {
	if !c.DefaultParticipationRate.IsPositive() || c.DefaultParticipationRate.GreaterThan(decimal.NewFromInt(1)) {
		c.DefaultParticipationRate = defaultParticipationRate
	}
	if c.QuantityPlaces < 0 {
		c.QuantityPlaces = 0
	}
	if c.PricePlaces <= 0 {
		c.PricePlaces = defaultPricePlaces
	}
	return c
}

// Config wires an Exchange and every Market it creates.
type Config struct {
	Market   MarketConfig
	Listener Listener
	Metrics  *obs.Metrics
}
