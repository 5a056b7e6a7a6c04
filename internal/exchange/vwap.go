package exchange

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/model"
	"simexchange/internal/model/enum"
	"simexchange/pkg/exception"
)

// UpdateMarketState applies one bar to every resting order of the market.
//
// The bar is validated before anything is touched, so a rejected bar leaves
// the book unchanged. Orders are visited in order_id ascending order; each
// eligible order executes at the bar vwap up to volume*participation_rate,
// capped at its remaining quantity. Orders whose end time lies before the bar
// are expired afterwards with their fill state frozen.
//
// Bars must arrive in non-decreasing timestamp order per instrument.
func (m *Market) UpdateMarketState(bar model.Bar) error {
	if err := m.validateBar(bar); err != nil {
		m.metrics.IncBarRejected()
		logs.Errorf("reject bar, instrument: %s, ts: %s, err: %+v", m.instrument, bar.Timestamp, err)
		return errors.Wrapf(err, "instrument: %s", m.instrument)
	}

	start := time.Now()
	m.mu.Lock()
	events := m.applyLocked(bar)
	m.mu.Unlock()
	m.metrics.ObserveBar(time.Since(start))
	m.metrics.IncBarApplied()

	m.publish(events)
	return nil
}

func (m *Market) validateBar(bar model.Bar) error {
	if bar.Symbol != "" && bar.Symbol != m.instrument {
		return exception.ErrBarSymbolMismatch
	}
	return bar.ValidateValues()
}

func (m *Market) applyLocked(bar model.Bar) execution {
	ts := bar.Timestamp
	volume := bar.Volume.Decimal
	vwap := bar.VWAP.Decimal

	m.last = model.MarketState{
		Instrument: m.instrument,
		Timestamp:  ts,
		LastPrice:  bar.Close,
		LastVolume: volume,
		LastVWAP:   vwap,
	}
	m.hasBar = true

	var out execution
	orders := m.sortedOrdersLocked()
	for _, o := range orders {
		if !o.eligibleAt(ts) || !o.priceAllows(vwap) {
			continue
		}

		qty := o.allowance(volume, m.cfg.QuantityPlaces)
		if !qty.IsPositive() {
			continue
		}

		out.fills = append(out.fills, o.fill(qty, vwap, ts))
		if o.status == enum.OrderStatusFilled {
			m.removeLocked(o)
			out.closed = append(out.closed, o.snapshot())
		}
	}

	for _, o := range orders {
		if o.status.IsTerminal() || !o.expiredAt(ts) {
			continue
		}
		o.finish(enum.OrderStatusExpired, ts)
		m.removeLocked(o)
		out.closed = append(out.closed, o.snapshot())
	}

	return out
}

// execution collects the events of one bar so they can be published once
// the market lock is released.
type execution struct {
	fills  []model.Fill
	closed []model.OrderState
}

func (m *Market) publish(e execution) {
	m.metrics.AddFills(len(e.fills))
	for _, s := range e.closed {
		switch s.Status {
		case enum.OrderStatusFilled:
			m.metrics.IncOrderFilled()
		case enum.OrderStatusExpired:
			m.metrics.IncOrderExpired()
		}
	}

	for _, f := range e.fills {
		m.listener.OnFill(f)
	}
	for _, s := range e.closed {
		m.listener.OnOrderClosed(s)
	}
}
