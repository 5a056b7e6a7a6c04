package exchange

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"simexchange/internal/model"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func minute(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Minute)
}

func newBar(symbol string, ts time.Time, volume, vwap string) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      d(vwap),
		High:      d(vwap),
		Low:       d(vwap),
		Close:     d(vwap),
		Volume:    nd(volume),
		Count:     1,
		VWAP:      nd(vwap),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

// eventLog records listener callbacks.
type eventLog struct {
	mu     sync.Mutex
	fills  []model.Fill
	closed []model.OrderState
}

func (l *eventLog) OnFill(fill model.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = append(l.fills, fill)
}

func (l *eventLog) OnOrderClosed(state model.OrderState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, state)
}

func (l *eventLog) Fills() []model.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Fill(nil), l.fills...)
}

func (l *eventLog) Closed() []model.OrderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.OrderState(nil), l.closed...)
}

func formatStates(states []model.OrderState) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, fmt.Sprintf("%d|%s|%s|%s|%s|%s",
			s.OrderID, s.Side, s.FilledQty.String(), s.RemainingQty.String(), s.AveragePrice.String(), s.Status))
	}
	return out
}
