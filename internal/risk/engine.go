package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/exchange"
	"simexchange/internal/model/enum"
	"simexchange/pkg/exception"
)

// Config defines simple pre-trade limits. Zero values disable a check.
type Config struct {
	KillSwitch       bool            `json:"killSwitch"`
	MaxOrderQty      decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition      decimal.Decimal `json:"maxPosition"`
	OrderRateLimit   int             `json:"orderRateLimit"`
	OrderRateWindow  time.Duration   `json:"orderRateWindow"`
}

// Reason explains a denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPositionLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill switch"
	case ReasonRateLimit:
		return "rate limit"
	case ReasonMaxQty:
		return "max order qty"
	case ReasonMaxNotional:
		return "max order notional"
	case ReasonPositionLimit:
		return "position limit"
	default:
		return "unknown"
	}
}

// StateView provides what the engine needs to know about the instrument.
type StateView struct {
	// Position is the net position including resting orders the caller wants
	// to count.
	Position decimal.Decimal
	// ReferencePrice prices orders without a limit; zero skips the notional check.
	ReferencePrice decimal.Decimal
	Now            time.Time
}

// Engine evaluates pre-trade decisions.
type Engine struct {
	cfg             Config
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies the limits to an order request.
func (e *Engine) Evaluate(req exchange.OrderRequest, state StateView) Reason {
	now := state.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if e.cfg.KillSwitch {
		return ReasonKillSwitch
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return ReasonRateLimit
		}
	}

	if e.cfg.MaxOrderQty.IsPositive() && req.Quantity.GreaterThan(e.cfg.MaxOrderQty) {
		return ReasonMaxQty
	}

	price := state.ReferencePrice
	if req.LimitPrice.Valid {
		price = req.LimitPrice.Decimal
	}
	if e.cfg.MaxOrderNotional.IsPositive() && price.IsPositive() &&
		req.Quantity.Mul(price).GreaterThan(e.cfg.MaxOrderNotional) {
		return ReasonMaxNotional
	}

	next := state.Position
	switch req.Side {
	case enum.OrderSideBuy:
		next = next.Add(req.Quantity)
	case enum.OrderSideSell:
		next = next.Sub(req.Quantity)
	}
	if e.cfg.MaxPosition.IsPositive() && next.Abs().GreaterThan(e.cfg.MaxPosition) {
		return ReasonPositionLimit
	}

	return ReasonNone
}

// PositionSource reports the net filled position of an instrument.
type PositionSource interface {
	NetPosition(instrument string) decimal.Decimal
}

// Gate checks orders before they reach the exchange. Resting quantity counts
// toward the position limit as if it were already filled.
type Gate struct {
	mu        sync.Mutex
	engine    *Engine
	ex        *exchange.Exchange
	positions PositionSource
}

// NewGate puts engine in front of ex. positions may be nil.
func NewGate(engine *Engine, ex *exchange.Exchange, positions PositionSource) *Gate {
	return &Gate{engine: engine, ex: ex, positions: positions}
}

// AddOrder evaluates the request and forwards it to the market of instrument.
// The exposure read and the insert happen under one lock, so concurrent
// submissions never pass the limit against the same stale exposure.
func (g *Gate) AddOrder(instrument string, req exchange.OrderRequest) (uint64, error) {
	m := g.ex.GetMarket(instrument)

	g.mu.Lock()
	defer g.mu.Unlock()

	view := StateView{Position: g.exposure(instrument, m)}
	if last, ok := m.LastBar(); ok {
		view.ReferencePrice = last.LastVWAP
	}

	if reason := g.engine.Evaluate(req, view); reason != ReasonNone {
		logs.Errorf("risk deny, instrument: %s, side: %s, qty: %s, reason: %s", instrument, req.Side, req.Quantity, reason)
		return 0, errors.Wrapf(exception.ErrRiskDenied, "instrument: %s, reason: %s", instrument, reason)
	}
	return m.AddOrder(req)
}

func (g *Gate) exposure(instrument string, m *exchange.Market) decimal.Decimal {
	var pos decimal.Decimal
	if g.positions != nil {
		pos = g.positions.NetPosition(instrument)
	}
	for _, o := range m.GetBuyOrders() {
		pos = pos.Add(o.RemainingQty)
	}
	for _, o := range m.GetSellOrders() {
		pos = pos.Sub(o.RemainingQty)
	}
	return pos
}
