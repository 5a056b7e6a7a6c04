package exchange

import (
	"slices"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/model"
	"simexchange/internal/model/enum"
	"simexchange/internal/obs"
	"simexchange/pkg/exception"
)

// Market holds the resting orders of one instrument and turns incoming bars
// into fills. Every mutation is serialized by the market's own lock.
type Market struct {
	instrument string
	cfg        MarketConfig
	listener   Listener
	metrics    *obs.Metrics

	mu     sync.Mutex
	nextID uint64
	buys   map[uint64]*Order
	sells  map[uint64]*Order
	last   model.MarketState
	hasBar bool
}

// NewMarket creates a standalone market. Markets served by an Exchange are
// created through Exchange.GetMarket instead.
func NewMarket(instrument string, cfg MarketConfig) *Market {
	return newMarket(instrument, cfg, nil, nil)
}

func newMarket(instrument string, cfg MarketConfig, listener Listener, metrics *obs.Metrics) *Market {
	if listener == nil {
		listener = NopListener{}
	}
	return &Market{
		instrument: instrument,
		cfg:        cfg.withDefaults(),
		listener:   listener,
		metrics:    metrics,
		buys:       make(map[uint64]*Order),
		sells:      make(map[uint64]*Order),
	}
}

func (m *Market) GetInstrument() string {
	return m.instrument
}

// AddOrder validates the request and rests it on its side of the book.
func (m *Market) AddOrder(req OrderRequest) (uint64, error) {
	rate, err := req.validate(m.cfg.DefaultParticipationRate)
	if err != nil {
		m.metrics.IncOrderRejected()
		logs.Errorf("reject order, instrument: %s, client order id: %s, err: %+v", m.instrument, req.ClientOrderID, err)
		return 0, errors.Wrapf(err, "instrument: %s, client order id: %s", m.instrument, req.ClientOrderID)
	}

	m.mu.Lock()
	m.nextID++
	o := newOrder(m.nextID, m.instrument, req, rate, m.cfg.PricePlaces)
	m.bookLocked(o.side)[o.id] = o
	m.mu.Unlock()

	m.metrics.IncOrderAccepted()
	return o.id, nil
}

// DeleteOrder cancels a resting order and returns its frozen final state.
func (m *Market) DeleteOrder(orderID uint64) (model.OrderState, error) {
	m.mu.Lock()
	o, ok := m.lookupLocked(orderID)
	if !ok {
		m.mu.Unlock()
		return model.OrderState{}, errors.Wrapf(exception.ErrOrderNotFound, "instrument: %s, order id: %d", m.instrument, orderID)
	}
	m.removeLocked(o)
	o.finish(enum.OrderStatusCancelled, time.Now().UTC())
	state := o.snapshot()
	m.mu.Unlock()

	m.metrics.IncOrderCanceled()
	m.listener.OnOrderClosed(state)
	return state, nil
}

// GetOrder returns a snapshot of a resting order.
func (m *Market) GetOrder(orderID uint64) (model.OrderState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.lookupLocked(orderID)
	if !ok {
		return model.OrderState{}, false
	}
	return o.snapshot(), true
}

// GetBuyOrders returns snapshots of the resting buy orders, oldest first.
func (m *Market) GetBuyOrders() []model.OrderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotBook(m.buys)
}

// GetSellOrders returns snapshots of the resting sell orders, oldest first.
func (m *Market) GetSellOrders() []model.OrderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotBook(m.sells)
}

// LastBar returns the state recorded from the most recent applied bar.
func (m *Market) LastBar() (model.MarketState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasBar
}

// Len returns the number of resting orders on both sides.
func (m *Market) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buys) + len(m.sells)
}

func (m *Market) bookLocked(side enum.OrderSide) map[uint64]*Order {
	if side == enum.OrderSideSell {
		return m.sells
	}
	return m.buys
}

func (m *Market) lookupLocked(orderID uint64) (*Order, bool) {
	if o, ok := m.buys[orderID]; ok {
		return o, true
	}
	o, ok := m.sells[orderID]
	return o, ok
}

func (m *Market) removeLocked(o *Order) {
	delete(m.bookLocked(o.side), o.id)
}

// sortedOrdersLocked merges both sides in order_id ascending order.
func (m *Market) sortedOrdersLocked() []*Order {
	orders := make([]*Order, 0, len(m.buys)+len(m.sells))
	for _, o := range m.buys {
		orders = append(orders, o)
	}
	for _, o := range m.sells {
		orders = append(orders, o)
	}
	slices.SortFunc(orders, compareOrderID)
	return orders
}

func snapshotBook(book map[uint64]*Order) []model.OrderState {
	orders := make([]*Order, 0, len(book))
	for _, o := range book {
		orders = append(orders, o)
	}
	slices.SortFunc(orders, compareOrderID)

	out := make([]model.OrderState, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.snapshot())
	}
	return out
}

func compareOrderID(a, b *Order) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}
