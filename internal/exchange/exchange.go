/*
Package exchange implements the simulated venue.

# Module
  - Exchange: instrument registry, creates one Market per symbol on first use
  - Market: order book of one instrument, paces fills from incoming bars
  - Order: fill progress of one participation-paced order

# Locking
  - the registry lock guards the instrument map only
  - each Market serializes its own book; bars for one instrument never block
    orders for another

# Lifetime
  - construct one Exchange per process with New and pass it to every
    collaborator; tests build their own instances
*/
package exchange

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// Exchange maps instruments to markets.
type Exchange struct {
	cfg Config

	mu      sync.RWMutex
	markets map[string]*Market
}

// New creates an empty exchange.
func New(cfg Config) *Exchange {
	cfg.Market = cfg.Market.withDefaults()
	return &Exchange{
		cfg:     cfg,
		markets: make(map[string]*Market),
	}
}

// GetMarket returns the market of the instrument, creating it on first use.
// Concurrent callers always receive the same instance.
func (e *Exchange) GetMarket(instrument string) *Market {
	e.mu.RLock()
	m, ok := e.markets[instrument]
	e.mu.RUnlock()
	if ok {
		return m
	}

	e.mu.Lock()
	if m, ok = e.markets[instrument]; ok {
		e.mu.Unlock()
		return m
	}
	m = newMarket(instrument, e.cfg.Market, e.cfg.Listener, e.cfg.Metrics)
	e.markets[instrument] = m
	e.mu.Unlock()

	e.cfg.Metrics.IncMarketCreated()
	logs.Infof("market created, instrument: %s", instrument)
	return m
}

// Book is GetMarket behind the OrderBook interface.
func (e *Exchange) Book(instrument string) OrderBook {
	return e.GetMarket(instrument)
}

// LookupMarket returns an existing market without creating one.
func (e *Exchange) LookupMarket(instrument string) (*Market, error) {
	e.mu.RLock()
	m, ok := e.markets[instrument]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrMarketNotFound, "instrument: %s", instrument)
	}
	return m, nil
}

// AddOrder routes an order to the market of the instrument.
func (e *Exchange) AddOrder(instrument string, req OrderRequest) (uint64, error) {
	return e.GetMarket(instrument).AddOrder(req)
}

// GetSymbols returns the tracked instruments in ascending order.
func (e *Exchange) GetSymbols() []string {
	e.mu.RLock()
	symbols := make([]string, 0, len(e.markets))
	for symbol := range e.markets {
		symbols = append(symbols, symbol)
	}
	e.mu.RUnlock()

	sort.Strings(symbols)
	return symbols
}

// UpdateMarketData routes a bar to the market of its symbol.
func (e *Exchange) UpdateMarketData(bar model.Bar) error {
	if bar.Symbol == "" {
		e.cfg.Metrics.IncBarRejected()
		logs.Errorf("reject bar, ts: %s, err: %+v", bar.Timestamp, exception.ErrBarSymbolMissing)
		return exception.ErrBarSymbolMissing
	}
	return e.GetMarket(bar.Symbol).UpdateMarketState(bar)
}

// RemoveMarket drops a market and its resting orders. It is meant for
// teardown; live order flow never removes markets.
func (e *Exchange) RemoveMarket(instrument string) bool {
	e.mu.Lock()
	_, ok := e.markets[instrument]
	delete(e.markets, instrument)
	e.mu.Unlock()

	if ok {
		logs.Infof("market removed, instrument: %s", instrument)
	}
	return ok
}

// Cleanup drops every market.
func (e *Exchange) Cleanup() {
	e.mu.Lock()
	count := len(e.markets)
	e.markets = make(map[string]*Market)
	e.mu.Unlock()

	logs.Infof("exchange cleaned up, markets: %d", count)
}
