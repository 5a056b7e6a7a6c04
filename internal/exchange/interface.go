package exchange

import "simexchange/internal/model"

var (
	_ OrderBook = (*Market)(nil)
	_ Registry  = (*Exchange)(nil)
	_ Listener  = Listeners(nil)
	_ Listener  = NopListener{}
)

// OrderBook is the order-level surface of a single instrument.
type OrderBook interface {
	GetInstrument() string
	AddOrder(req OrderRequest) (uint64, error)
	DeleteOrder(orderID uint64) (model.OrderState, error)
	GetOrder(orderID uint64) (model.OrderState, bool)
	GetBuyOrders() []model.OrderState
	GetSellOrders() []model.OrderState
	UpdateMarketState(bar model.Bar) error
	LastBar() (model.MarketState, bool)
}

// Registry maps instruments to their order books.
type Registry interface {
	Book(instrument string) OrderBook
	GetSymbols() []string
	UpdateMarketData(bar model.Bar) error
	RemoveMarket(instrument string) bool
	Cleanup()
}

// Listener receives execution events. Callbacks run on the goroutine that
// produced the event, after the market lock has been released.
type Listener interface {
	OnFill(fill model.Fill)
	OnOrderClosed(state model.OrderState)
}

// Listeners fans events out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnFill(fill model.Fill) {
	for _, l := range ls {
		if l != nil {
			l.OnFill(fill)
		}
	}
}

func (ls Listeners) OnOrderClosed(state model.OrderState) {
	for _, l := range ls {
		if l != nil {
			l.OnOrderClosed(state)
		}
	}
}

// NopListener discards every event.
type NopListener struct{}

func (NopListener) OnFill(model.Fill)              {}
func (NopListener) OnOrderClosed(model.OrderState) {}
