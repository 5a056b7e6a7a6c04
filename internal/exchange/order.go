package exchange

import (
	"time"

	"github.com/shopspring/decimal"

	"simexchange/internal/model"
	"simexchange/internal/model/enum"
	"simexchange/pkg/exception"
)

var one = decimal.NewFromInt(1)

// OrderRequest is a submission for a participation-paced order.
// A LimitPrice that is not Valid makes the order a pure VWAP order; a
// ParticipationRate that is not Valid takes the market default. Zero start
// or end times leave that side of the window open.
type OrderRequest struct {
	Side              enum.OrderSide
	Quantity          decimal.Decimal
	LimitPrice        decimal.NullDecimal
	ClientOrderID     string
	ParticipationRate decimal.NullDecimal
	StartTime         time.Time
	EndTime           time.Time
}

func (req OrderRequest) validate(defaultRate decimal.Decimal) (decimal.Decimal, error) {
	if !req.Side.IsAvailable() {
		return decimal.Zero, exception.ErrOrderSide
	}
	if !req.Quantity.IsPositive() {
		return decimal.Zero, exception.ErrOrderQuantity
	}

	rate := defaultRate
	if req.ParticipationRate.Valid {
		rate = req.ParticipationRate.Decimal
	}
	if !rate.IsPositive() || rate.GreaterThan(one) {
		return decimal.Zero, exception.ErrOrderParticipationRate
	}

	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && !req.EndTime.After(req.StartTime) {
		return decimal.Zero, exception.ErrOrderTimeWindow
	}
	if req.LimitPrice.Valid && !req.LimitPrice.Decimal.IsPositive() {
		return decimal.Zero, exception.ErrOrderLimitPrice
	}

	return rate, nil
}

// Order is one resting execution order. It is owned by the Market that
// accepted it and only mutated under that market's lock.
type Order struct {
	id            uint64
	clientOrderID string
	instrument    string
	side          enum.OrderSide
	originalQty   decimal.Decimal
	limitPrice    decimal.NullDecimal
	rate          decimal.Decimal
	startTime     time.Time
	endTime       time.Time
	pricePlaces   int32

	filledQty decimal.Decimal
	// notional is the exact sum of qty*price over all fills.
	notional  decimal.Decimal
	status    enum.OrderStatus
	updatedAt time.Time
}

func newOrder(id uint64, instrument string, req OrderRequest, rate decimal.Decimal, pricePlaces int32) *Order {
	return &Order{
		id:            id,
		clientOrderID: req.ClientOrderID,
		instrument:    instrument,
		side:          req.Side,
		originalQty:   req.Quantity,
		limitPrice:    req.LimitPrice,
		rate:          rate,
		startTime:     req.StartTime,
		endTime:       req.EndTime,
		pricePlaces:   pricePlaces,
		filledQty:     decimal.Zero,
		notional:      decimal.Zero,
		status:        enum.OrderStatusNew,
	}
}

// RemainingQty is original minus filled quantity.
func (o *Order) RemainingQty() decimal.Decimal {
	return o.originalQty.Sub(o.filledQty)
}

// FillRate is filled over original quantity.
func (o *Order) FillRate() decimal.Decimal {
	return o.filledQty.Div(o.originalQty)
}

// AveragePrice is the volume-weighted price of all fills, 0 before the first.
func (o *Order) AveragePrice() decimal.Decimal {
	if o.filledQty.IsZero() {
		return decimal.Zero
	}
	return o.notional.DivRound(o.filledQty, o.pricePlaces)
}

func (o *Order) eligibleAt(ts time.Time) bool {
	if !o.startTime.IsZero() && ts.Before(o.startTime) {
		return false
	}
	if !o.endTime.IsZero() && ts.After(o.endTime) {
		return false
	}
	return true
}

func (o *Order) expiredAt(ts time.Time) bool {
	return !o.endTime.IsZero() && o.endTime.Before(ts)
}

// priceAllows applies the limit condition against the bar vwap.
func (o *Order) priceAllows(vwap decimal.Decimal) bool {
	if !o.limitPrice.Valid {
		return true
	}
	switch o.side {
	case enum.OrderSideBuy:
		return vwap.LessThanOrEqual(o.limitPrice.Decimal)
	case enum.OrderSideSell:
		return vwap.GreaterThanOrEqual(o.limitPrice.Decimal)
	default:
		return false
	}
}

// allowance is the pacing share of one bar's volume, truncated to the
// quantity precision and capped at the remaining quantity.
func (o *Order) allowance(volume decimal.Decimal, quantityPlaces int32) decimal.Decimal {
	qty := volume.Mul(o.rate).Truncate(quantityPlaces)
	if remaining := o.RemainingQty(); qty.GreaterThan(remaining) {
		qty = remaining
	}
	return qty
}

func (o *Order) fill(qty, price decimal.Decimal, ts time.Time) model.Fill {
	o.filledQty = o.filledQty.Add(qty)
	o.notional = o.notional.Add(qty.Mul(price))
	o.updatedAt = ts

	next := enum.OrderStatusPartiallyFilled
	if o.filledQty.Equal(o.originalQty) {
		next = enum.OrderStatusFilled
	}
	o.transition(next)

	return model.Fill{
		OrderID:       o.id,
		ClientOrderID: o.clientOrderID,
		Instrument:    o.instrument,
		Side:          o.side,
		Price:         price,
		Quantity:      qty,
		FilledQty:     o.filledQty,
		Status:        o.status,
		Timestamp:     ts,
	}
}

func (o *Order) finish(status enum.OrderStatus, ts time.Time) {
	if o.transition(status) {
		o.updatedAt = ts
	}
}

func (o *Order) transition(next enum.OrderStatus) bool {
	if !o.status.CanTransitionTo(next) {
		return false
	}
	o.status = next
	return true
}

func (o *Order) snapshot() model.OrderState {
	return model.OrderState{
		OrderID:           o.id,
		ClientOrderID:     o.clientOrderID,
		Instrument:        o.instrument,
		Side:              o.side,
		OriginalQty:       o.originalQty,
		FilledQty:         o.filledQty,
		RemainingQty:      o.RemainingQty(),
		AveragePrice:      o.AveragePrice(),
		LimitPrice:        o.limitPrice,
		ParticipationRate: o.rate,
		FillRate:          o.FillRate(),
		StartTime:         o.startTime,
		EndTime:           o.endTime,
		Status:            o.status,
		UpdatedAt:         o.updatedAt,
	}
}
