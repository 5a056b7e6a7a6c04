package mdg

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// Trade is one print inside a bar interval.
type Trade struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Aggregate folds the trades of one interval into a bar. The vwap is the
// size-weighted mean price rounded to pricePlaces.
func Aggregate(symbol string, ts time.Time, trades []Trade, pricePlaces int32) (model.Bar, error) {
	if symbol == "" {
		return model.Bar{}, exception.ErrBarSymbolMissing
	}
	if len(trades) == 0 {
		return model.Bar{}, errors.Wrapf(exception.ErrMarketDataVolume, "symbol: %s, no trades", symbol)
	}

	var (
		high     = trades[0].Price
		low      = trades[0].Price
		volume   decimal.Decimal
		notional decimal.Decimal
	)
	for _, t := range trades {
		if !t.Price.IsPositive() || t.Size.IsNegative() {
			return model.Bar{}, errors.Wrapf(exception.ErrMarketDataError, "symbol: %s, trade: %s@%s", symbol, t.Size, t.Price)
		}
		high = decimal.Max(high, t.Price)
		low = decimal.Min(low, t.Price)
		volume = volume.Add(t.Size)
		notional = notional.Add(t.Price.Mul(t.Size))
	}

	vwap := trades[len(trades)-1].Price
	if volume.IsPositive() {
		vwap = notional.DivRound(volume, pricePlaces)
	}

	return model.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      trades[0].Price,
		High:      high,
		Low:       low,
		Close:     trades[len(trades)-1].Price,
		Volume:    decimal.NewNullDecimal(volume),
		Count:     int64(len(trades)),
		VWAP:      decimal.NewNullDecimal(vwap),
	}, nil
}
