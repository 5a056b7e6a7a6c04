package exception

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBar      = errors.New("market data: invalid bar")
	ErrMarketDataError = errors.New("market data: malformed bar")
	ErrMarketNotFound  = errors.New("market data: market not found")
)

var (
	ErrBarSymbolMissing    = fmt.Errorf("%w: symbol missing", ErrInvalidBar)
	ErrBarSymbolMismatch   = fmt.Errorf("%w: symbol mismatch", ErrInvalidBar)
	ErrMarketDataTimestamp = fmt.Errorf("%w: timestamp missing", ErrMarketDataError)
	ErrMarketDataVolume    = fmt.Errorf("%w: volume missing or negative", ErrMarketDataError)
	ErrMarketDataVWAP      = fmt.Errorf("%w: vwap missing or not positive", ErrMarketDataError)
)

var (
	ErrFeedNoSymbols   = errors.New("feed: no symbols")
	ErrFeedNilConsumer = errors.New("feed: nil consumer")
	ErrFeedKline       = errors.New("feed: malformed kline")
)
