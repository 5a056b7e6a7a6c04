package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight engine counters and latency stats.
// All methods are safe on a nil receiver.
type Metrics struct {
	barsApplied    uint64
	barsRejected   uint64
	ordersAccepted uint64
	ordersRejected uint64
	fills          uint64
	ordersFilled   uint64
	ordersCanceled uint64
	ordersExpired  uint64
	marketsCreated uint64

	barLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	BarsApplied    uint64
	BarsRejected   uint64
	OrdersAccepted uint64
	OrdersRejected uint64
	Fills          uint64
	OrdersFilled   uint64
	OrdersCanceled uint64
	OrdersExpired  uint64
	MarketsCreated uint64
	BarLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncBarApplied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.barsApplied, 1)
}

func (m *Metrics) IncBarRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.barsRejected, 1)
}

func (m *Metrics) IncOrderAccepted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersAccepted, 1)
}

func (m *Metrics) IncOrderRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersRejected, 1)
}

// AddFills records n executions against a single bar.
func (m *Metrics) AddFills(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.fills, uint64(n))
}

func (m *Metrics) IncOrderFilled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersFilled, 1)
}

func (m *Metrics) IncOrderCanceled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersCanceled, 1)
}

func (m *Metrics) IncOrderExpired() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersExpired, 1)
}

func (m *Metrics) IncMarketCreated() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.marketsCreated, 1)
}

// ObserveBar measures how long one bar took to apply to a market.
func (m *Metrics) ObserveBar(d time.Duration) {
	if m == nil {
		return
	}
	m.barLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		BarsApplied:    atomic.LoadUint64(&m.barsApplied),
		BarsRejected:   atomic.LoadUint64(&m.barsRejected),
		OrdersAccepted: atomic.LoadUint64(&m.ordersAccepted),
		OrdersRejected: atomic.LoadUint64(&m.ordersRejected),
		Fills:          atomic.LoadUint64(&m.fills),
		OrdersFilled:   atomic.LoadUint64(&m.ordersFilled),
		OrdersCanceled: atomic.LoadUint64(&m.ordersCanceled),
		OrdersExpired:  atomic.LoadUint64(&m.ordersExpired),
		MarketsCreated: atomic.LoadUint64(&m.marketsCreated),
		BarLatency:     m.barLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}

	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
