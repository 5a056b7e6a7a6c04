package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	testCases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusNew, OrderStatusPartiallyFilled, true},
		{OrderStatusNew, OrderStatusFilled, true},
		{OrderStatusNew, OrderStatusCancelled, true},
		{OrderStatusNew, OrderStatusExpired, true},
		{OrderStatusPartiallyFilled, OrderStatusPartiallyFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusNew, false},
		{OrderStatusFilled, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusExpired, false},
		{OrderStatusExpired, OrderStatusPartiallyFilled, false},
		{OrderStatusNew, _order_status_end, false},
	}

	for _, tc := range testCases {
		assert.Equalf(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseOrderSide(t *testing.T) {
	side, ok := ParseOrderSide("buy")
	assert.True(t, ok)
	assert.Equal(t, OrderSideBuy, side)

	side, ok = ParseOrderSide("SELL")
	assert.True(t, ok)
	assert.Equal(t, OrderSideSell, side)

	_, ok = ParseOrderSide("hold")
	assert.False(t, ok)
	assert.False(t, OrderSide(0).IsAvailable())
}

func TestParseOrderStatus(t *testing.T) {
	for st := _order_status_beg + 1; st < _order_status_end; st++ {
		got, ok := ParseOrderStatus(st.String())
		assert.True(t, ok)
		assert.Equal(t, st, got)
	}

	_, ok := ParseOrderStatus("UNKNOWN")
	assert.False(t, ok)
}
