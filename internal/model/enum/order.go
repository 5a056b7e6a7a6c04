package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderSide accepts BUY/SELL in any case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch s {
	case "BUY", "buy", "Buy":
		return OrderSideBuy, true
	case "SELL", "sell", "Sell":
		return OrderSideSell, true
	default:
		return _order_side_beg, false
	}
}

// OrderStatus new, partially filled, filled, cancelled, expired
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusExpired
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsAvailable() {
		return false
	}
	switch next {
	case OrderStatusNew:
		return false
	case OrderStatusPartiallyFilled:
		return s == OrderStatusNew || s == OrderStatusPartiallyFilled
	default:
		return true
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "NEW"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderStatus is the inverse of OrderStatus.String.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for st := _order_status_beg + 1; st < _order_status_end; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return _order_status_beg, false
}
