package model

import (
	"time"

	"github.com/shopspring/decimal"

	"simexchange/pkg/exception"
)

// Bar is an aggregated price/volume summary of one instrument over a fixed
// interval. Volume and VWAP are nullable so a feed can report them missing.
type Bar struct {
	Symbol    string              `json:"symbol"`
	Timestamp time.Time           `json:"timestamp"`
	Open      decimal.Decimal     `json:"open"`
	High      decimal.Decimal     `json:"high"`
	Low       decimal.Decimal     `json:"low"`
	Close     decimal.Decimal     `json:"close"`
	Volume    decimal.NullDecimal `json:"volume"`
	Count     int64               `json:"count"`
	VWAP      decimal.NullDecimal `json:"vwap"`
}

// ValidateValues checks the numeric fields the execution algorithm relies on.
// The symbol is checked by the caller because its absence is a distinct
// error kind.
func (b Bar) ValidateValues() error {
	if b.Timestamp.IsZero() {
		return exception.ErrMarketDataTimestamp
	}
	if !b.Volume.Valid {
		return exception.ErrMarketDataVolume
	}
	if !b.VWAP.Valid {
		return exception.ErrMarketDataVWAP
	}
	if b.Volume.Decimal.IsNegative() {
		return exception.ErrMarketDataVolume
	}
	if b.VWAP.Decimal.IsNegative() || (b.VWAP.Decimal.IsZero() && b.Volume.Decimal.IsPositive()) {
		return exception.ErrMarketDataVWAP
	}
	return nil
}

// MarketState is the last bar a market applied.
type MarketState struct {
	Instrument string
	Timestamp  time.Time
	LastPrice  decimal.Decimal
	LastVolume decimal.Decimal
	LastVWAP   decimal.Decimal
}
