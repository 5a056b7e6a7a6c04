package model

import (
	"time"

	"github.com/shopspring/decimal"

	"simexchange/internal/model/enum"
)

// OrderState is a point-in-time copy of an order. Snapshots of terminal
// orders are frozen and never change afterwards.
type OrderState struct {
	OrderID           uint64
	ClientOrderID     string
	Instrument        string
	Side              enum.OrderSide
	OriginalQty       decimal.Decimal
	FilledQty         decimal.Decimal
	RemainingQty      decimal.Decimal
	AveragePrice      decimal.Decimal
	LimitPrice        decimal.NullDecimal
	ParticipationRate decimal.Decimal
	FillRate          decimal.Decimal
	StartTime         time.Time
	EndTime           time.Time
	Status            enum.OrderStatus
	UpdatedAt         time.Time
}

// FillStatus derives the execution progress from the quantities, independent
// of how the order left the book.
func (s OrderState) FillStatus() enum.OrderStatus {
	switch {
	case s.FilledQty.IsZero():
		return enum.OrderStatusNew
	case s.FilledQty.Equal(s.OriginalQty):
		return enum.OrderStatusFilled
	default:
		return enum.OrderStatusPartiallyFilled
	}
}

// IsPureVWAP reports whether the order executes without a price condition.
func (s OrderState) IsPureVWAP() bool {
	return !s.LimitPrice.Valid
}

// Fill is a single execution against one bar.
type Fill struct {
	OrderID       uint64
	ClientOrderID string
	Instrument    string
	Side          enum.OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	Status        enum.OrderStatus
	Timestamp     time.Time
}

// Notional returns price * quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}
