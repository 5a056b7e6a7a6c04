package state

import (
	"sync"

	"github.com/shopspring/decimal"

	"simexchange/internal/model"
	"simexchange/internal/model/enum"
)

// Position aggregates the fills of one instrument.
type Position struct {
	Bought       decimal.Decimal
	Sold         decimal.Decimal
	BuyNotional  decimal.Decimal
	SellNotional decimal.Decimal
	Fills        uint64
}

// Net returns bought minus sold.
func (p Position) Net() decimal.Decimal {
	return p.Bought.Sub(p.Sold)
}

// Cash returns the cash flow of the position, sell notional minus buy notional.
func (p Position) Cash() decimal.Decimal {
	return p.SellNotional.Sub(p.BuyNotional)
}

// PositionReducer updates positions based on fill events. It is safe for
// concurrent use and can be registered as an exchange listener.
type PositionReducer struct {
	mu        sync.RWMutex
	positions map[string]Position
	closed    map[enum.OrderStatus]uint64
	lastTs    int64
}

// NewPositionReducer creates an empty reducer.
func NewPositionReducer() *PositionReducer {
	return &PositionReducer{
		positions: make(map[string]Position),
		closed:    make(map[enum.OrderStatus]uint64),
	}
}

// ApplyFill updates the position and returns it.
func (r *PositionReducer) ApplyFill(fill model.Fill) Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.positions[fill.Instrument]
	notional := fill.Notional()
	switch fill.Side {
	case enum.OrderSideBuy:
		current.Bought = current.Bought.Add(fill.Quantity)
		current.BuyNotional = current.BuyNotional.Add(notional)
	case enum.OrderSideSell:
		current.Sold = current.Sold.Add(fill.Quantity)
		current.SellNotional = current.SellNotional.Add(notional)
	default:
		return current
	}
	current.Fills++
	r.positions[fill.Instrument] = current
	if ts := fill.Timestamp.UnixNano(); ts > r.lastTs {
		r.lastTs = ts
	}
	return current
}

// OnFill implements exchange.Listener.
func (r *PositionReducer) OnFill(fill model.Fill) {
	r.ApplyFill(fill)
}

// OnOrderClosed implements exchange.Listener.
func (r *PositionReducer) OnOrderClosed(state model.OrderState) {
	r.mu.Lock()
	r.closed[state.Status]++
	r.mu.Unlock()
}

// ApplySnapshot replaces positions with a snapshot.
func (r *PositionReducer) ApplySnapshot(snapshot Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.positions)
	for _, entry := range snapshot.Positions {
		r.positions[entry.Instrument] = Position{
			Bought:       entry.Bought,
			Sold:         entry.Sold,
			BuyNotional:  entry.BuyNotional,
			SellNotional: entry.SellNotional,
			Fills:        entry.Fills,
		}
	}
	r.lastTs = snapshot.LastEventTs
}

// Position returns the current position for an instrument.
func (r *PositionReducer) Position(instrument string) Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions[instrument]
}

// Closed returns how many orders reached the given terminal status.
func (r *PositionReducer) Closed(status enum.OrderStatus) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed[status]
}

// Count returns the number of tracked instruments.
func (r *PositionReducer) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

// NetPosition returns the net filled quantity of an instrument.
func (r *PositionReducer) NetPosition(instrument string) decimal.Decimal {
	return r.Position(instrument).Net()
}
