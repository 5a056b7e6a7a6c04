package store

import (
	"time"

	"github.com/shopspring/decimal"

	"simexchange/internal/model"
	"simexchange/internal/model/enum"
)

// FillRecord is the persisted form of one execution.
type FillRecord struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	Instrument    string          `gorm:"size:32;not null;index:idx_fill_order,priority:1"`
	OrderID       uint64          `gorm:"not null;index:idx_fill_order,priority:2"`
	ClientOrderID string          `gorm:"size:64"`
	Side          string          `gorm:"size:8;not null"`
	Price         decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	Quantity      decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	FilledQty     decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	Status        string          `gorm:"size:24;not null"`
	ExecutedAt    time.Time       `gorm:"not null;index"`
	CreatedAt     time.Time
}

func (FillRecord) TableName() string { return "sim_fills" }

// OrderRecord is the persisted final state of an order.
type OrderRecord struct {
	Instrument        string              `gorm:"primaryKey;size:32"`
	OrderID           uint64              `gorm:"primaryKey;autoIncrement:false"`
	ClientOrderID     string              `gorm:"size:64;index"`
	Side              string              `gorm:"size:8;not null"`
	OriginalQty       decimal.Decimal     `gorm:"type:numeric(38,18);not null"`
	FilledQty         decimal.Decimal     `gorm:"type:numeric(38,18);not null"`
	AveragePrice      decimal.Decimal     `gorm:"type:numeric(38,18);not null"`
	LimitPrice        decimal.NullDecimal `gorm:"type:numeric(38,18)"`
	ParticipationRate decimal.Decimal     `gorm:"type:numeric(38,18);not null"`
	StartTime         *time.Time
	EndTime           *time.Time
	Status            string    `gorm:"size:24;not null;index"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (OrderRecord) TableName() string { return "sim_orders" }

func newFillRecord(f model.Fill) FillRecord {
	return FillRecord{
		Instrument:    f.Instrument,
		OrderID:       f.OrderID,
		ClientOrderID: f.ClientOrderID,
		Side:          f.Side.String(),
		Price:         f.Price,
		Quantity:      f.Quantity,
		FilledQty:     f.FilledQty,
		Status:        f.Status.String(),
		ExecutedAt:    f.Timestamp.UTC(),
	}
}

// Fill converts the record back into a model.Fill.
func (r FillRecord) Fill() model.Fill {
	side, _ := enum.ParseOrderSide(r.Side)
	status, _ := enum.ParseOrderStatus(r.Status)
	return model.Fill{
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Instrument:    r.Instrument,
		Side:          side,
		Price:         r.Price,
		Quantity:      r.Quantity,
		FilledQty:     r.FilledQty,
		Status:        status,
		Timestamp:     r.ExecutedAt.UTC(),
	}
}

func newOrderRecord(s model.OrderState) OrderRecord {
	return OrderRecord{
		Instrument:        s.Instrument,
		OrderID:           s.OrderID,
		ClientOrderID:     s.ClientOrderID,
		Side:              s.Side.String(),
		OriginalQty:       s.OriginalQty,
		FilledQty:         s.FilledQty,
		AveragePrice:      s.AveragePrice,
		LimitPrice:        s.LimitPrice,
		ParticipationRate: s.ParticipationRate,
		StartTime:         optionalTime(s.StartTime),
		EndTime:           optionalTime(s.EndTime),
		Status:            s.Status.String(),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}
}

// OrderState converts the record back into a model.OrderState.
func (r OrderRecord) OrderState() model.OrderState {
	side, _ := enum.ParseOrderSide(r.Side)
	status, _ := enum.ParseOrderStatus(r.Status)
	s := model.OrderState{
		OrderID:           r.OrderID,
		ClientOrderID:     r.ClientOrderID,
		Instrument:        r.Instrument,
		Side:              side,
		OriginalQty:       r.OriginalQty,
		FilledQty:         r.FilledQty,
		RemainingQty:      r.OriginalQty.Sub(r.FilledQty),
		AveragePrice:      r.AveragePrice,
		LimitPrice:        r.LimitPrice,
		ParticipationRate: r.ParticipationRate,
		Status:            status,
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.StartTime != nil {
		s.StartTime = r.StartTime.UTC()
	}
	if r.EndTime != nil {
		s.EndTime = r.EndTime.UTC()
	}
	if r.OriginalQty.IsPositive() {
		s.FillRate = r.FilledQty.Div(r.OriginalQty)
	}
	return s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
