package feed

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// BinanceKline is the 'Kline/Candlestick Stream' event.
type BinanceKline struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Kline     BinanceKlineBar `json:"k"`
}

// BinanceKlineBar is the candle carried by a kline event. Prices and volumes
// arrive as strings.
type BinanceKlineBar struct {
	StartTime   int64  `json:"t"`
	CloseTime   int64  `json:"T"`
	Symbol      string `json:"s"`
	Interval    string `json:"i"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	Trades      int64  `json:"n"`
	Closed      bool   `json:"x"`
	QuoteVolume string `json:"q"`
}

// Bar converts a closed candle into a bar stamped with the candle open time.
// The vwap is quote volume over base volume, or the close price when nothing
// traded.
func (k BinanceKline) Bar() (model.Bar, error) {
	c := k.Kline
	symbol := c.Symbol
	if symbol == "" {
		symbol = k.Symbol
	}
	if symbol == "" || c.StartTime <= 0 {
		return model.Bar{}, errors.Wrapf(exception.ErrFeedKline, "symbol: %q, start: %d", symbol, c.StartTime)
	}

	var (
		values [6]decimal.Decimal
		raw    = [6]string{c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume}
	)
	for i, s := range raw {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return model.Bar{}, errors.Wrapf(exception.ErrFeedKline, "symbol: %s, field %d: %q", symbol, i, s)
		}
		values[i] = v
	}
	open, high, low, closePrice, volume, quote := values[0], values[1], values[2], values[3], values[4], values[5]

	vwap := closePrice
	if volume.IsPositive() {
		vwap = quote.DivRound(volume, 8)
	}

	return model.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(c.StartTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    decimal.NewNullDecimal(volume),
		Count:     c.Trades,
		VWAP:      decimal.NewNullDecimal(vwap),
	}, nil
}
