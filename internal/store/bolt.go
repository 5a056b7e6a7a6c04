package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	bolt "go.etcd.io/bbolt"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

const (
	bucketFills  = "fills"
	bucketOrders = "orders"
)

// Journal is an embedded store for fills and order states. It serves runs
// without a database and satisfies Writer.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens or creates the journal file.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db %s", path)
	}
	j := &Journal{db: db}
	if err := j.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureBuckets() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketFills, bucketOrders} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
}

// Close releases the file lock.
func (j *Journal) Close() error {
	return j.db.Close()
}

// instrument \x00 order id, so every key of one instrument shares a prefix
// and orders sort by id.
func orderKey(instrument string, orderID uint64) []byte {
	key := make([]byte, 0, len(instrument)+1+8)
	key = append(key, instrument...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, orderID)
}

func instrumentPrefix(instrument string) []byte {
	return append([]byte(instrument), 0)
}

// SaveFill appends one execution. Fills of an order keep their arrival order.
func (j *Journal) SaveFill(_ context.Context, fill model.Fill) error {
	data, err := sonic.Marshal(newFillRecord(fill))
	if err != nil {
		return errors.Wrap(err, "marshal fill")
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketFills))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := binary.BigEndian.AppendUint64(orderKey(fill.Instrument, fill.OrderID), seq)
		return b.Put(key, data)
	})
}

// SaveOrderState replaces the stored state of an order.
func (j *Journal) SaveOrderState(_ context.Context, state model.OrderState) error {
	data, err := sonic.Marshal(newOrderRecord(state))
	if err != nil {
		return errors.Wrap(err, "marshal order")
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOrders)).Put(orderKey(state.Instrument, state.OrderID), data)
	})
}

// ListFills returns the fills of an instrument ordered by order id, then
// arrival. A zero orderID lists every order of the instrument.
func (j *Journal) ListFills(_ context.Context, instrument string, orderID uint64) ([]model.Fill, error) {
	prefix := instrumentPrefix(instrument)
	if orderID != 0 {
		prefix = orderKey(instrument, orderID)
	}

	var fills []model.Fill
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFills)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record FillRecord
			if err := sonic.Unmarshal(v, &record); err != nil {
				return errors.Wrapf(err, "unmarshal fill %x", k)
			}
			fills = append(fills, record.Fill())
		}
		return nil
	})
	return fills, err
}

// GetOrderState loads the stored state of one order.
func (j *Journal) GetOrderState(_ context.Context, instrument string, orderID uint64) (model.OrderState, error) {
	var record OrderRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketOrders)).Get(orderKey(instrument, orderID))
		if v == nil {
			return errors.Wrapf(exception.ErrOrderNotFound, "instrument: %s, order: %d", instrument, orderID)
		}
		return sonic.Unmarshal(v, &record)
	})
	if err != nil {
		return model.OrderState{}, err
	}
	return record.OrderState(), nil
}
