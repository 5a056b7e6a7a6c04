package store

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// Store persists fills and final order states.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&FillRecord{}, &OrderRecord{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// SaveFill appends one execution.
func (s *Store) SaveFill(ctx context.Context, fill model.Fill) error {
	record := newFillRecord(fill)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrapf(err, "save fill, instrument: %s, order: %d", fill.Instrument, fill.OrderID)
	}
	return nil
}

// SaveOrderState upserts the state of an order keyed by instrument and id.
func (s *Store) SaveOrderState(ctx context.Context, state model.OrderState) error {
	record := newOrderRecord(state)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instrument"}, {Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return errors.Wrapf(err, "save order, instrument: %s, order: %d", state.Instrument, state.OrderID)
	}
	return nil
}

// ListFills returns the fills of an instrument in execution order. A zero
// orderID lists every order of the instrument.
func (s *Store) ListFills(ctx context.Context, instrument string, orderID uint64) ([]model.Fill, error) {
	query := s.db.WithContext(ctx).Where("instrument = ?", instrument)
	if orderID != 0 {
		query = query.Where("order_id = ?", orderID)
	}

	var records []FillRecord
	if err := query.Order("executed_at ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "list fills, instrument: %s", instrument)
	}

	fills := make([]model.Fill, 0, len(records))
	for _, r := range records {
		fills = append(fills, r.Fill())
	}
	return fills, nil
}

// GetOrderState loads the stored state of one order.
func (s *Store) GetOrderState(ctx context.Context, instrument string, orderID uint64) (model.OrderState, error) {
	var records []OrderRecord
	err := s.db.WithContext(ctx).
		Where("instrument = ? AND order_id = ?", instrument, orderID).
		Limit(1).
		Find(&records).Error
	if err != nil {
		return model.OrderState{}, errors.Wrapf(err, "get order, instrument: %s, order: %d", instrument, orderID)
	}
	if len(records) == 0 {
		return model.OrderState{}, errors.Wrapf(exception.ErrOrderNotFound, "instrument: %s, order: %d", instrument, orderID)
	}
	return records[0].OrderState(), nil
}
