package feed

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// Consumer receives bars built from the feed. *exchange.Exchange satisfies it.
type Consumer interface {
	UpdateMarketData(bar model.Bar) error
}

// Config selects the stream.
type Config struct {
	URL      string
	Symbols  []string
	Interval string
}

// Feed turns closed Binance candles into bars.
type Feed struct {
	cfg      Config
	consumer Consumer

	received uint64
	applied  uint64
	rejected uint64
}

// New validates the config and creates a feed.
func New(cfg Config, consumer Consumer) (*Feed, error) {
	if len(cfg.Symbols) == 0 {
		return nil, exception.ErrFeedNoSymbols
	}
	if consumer == nil {
		return nil, exception.ErrFeedNilConsumer
	}
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	return &Feed{cfg: cfg, consumer: consumer}, nil
}

// Run connects, subscribes and forwards bars until ctx is done or the
// process receives a shutdown signal.
func (f *Feed) Run(ctx context.Context) error {
	pub := NewBinancePub(ctx, f.cfg.URL)
	defer pub.Close()

	if err := pub.StartWebsocket(ctx); err != nil {
		return err
	}
	unsubscribe := pub.ObserveKline(ctx, f.Handle)
	defer unsubscribe()

	if err := pub.SubscribeKline(ctx, f.cfg.Symbols, f.cfg.Interval); err != nil {
		return errors.Wrapf(err, "subscribe kline, symbols: %v", f.cfg.Symbols)
	}
	logs.Infof("feed subscribed, symbols: %v, interval: %s", f.cfg.Symbols, f.cfg.Interval)

	select {
	case <-ctx.Done():
	case <-sys.Shutdown():
	}
	return nil
}

// Handle forwards one kline event. Candles still in progress are ignored.
func (f *Feed) Handle(k BinanceKline) {
	atomic.AddUint64(&f.received, 1)
	if !k.Kline.Closed {
		return
	}

	bar, err := k.Bar()
	if err != nil {
		atomic.AddUint64(&f.rejected, 1)
		logs.Errorf("convert kline, err: %+v", err)
		return
	}
	if err := f.consumer.UpdateMarketData(bar); err != nil {
		atomic.AddUint64(&f.rejected, 1)
		logs.Errorf("apply bar, symbol: %s, ts: %s, err: %+v", bar.Symbol, bar.Timestamp, err)
		return
	}
	atomic.AddUint64(&f.applied, 1)
}

// Stats returns received, applied and rejected event counts.
func (f *Feed) Stats() (received, applied, rejected uint64) {
	return atomic.LoadUint64(&f.received), atomic.LoadUint64(&f.applied), atomic.LoadUint64(&f.rejected)
}
