package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"simexchange/internal/bus"
	"simexchange/internal/model"
)

const defaultSinkCapacity = 4096

// Writer is the persistence surface the sink drains into. *Store satisfies it.
type Writer interface {
	SaveFill(ctx context.Context, fill model.Fill) error
	SaveOrderState(ctx context.Context, state model.OrderState) error
}

type event struct {
	fill  *model.Fill
	state *model.OrderState
}

// Sink is an exchange listener that persists events off the market goroutine.
// Events that do not fit into the queue are dropped and counted.
type Sink struct {
	writer  Writer
	queue   *bus.Queue[event]
	timeout time.Duration
	failed  uint64
}

// NewSink creates a sink with the given queue capacity.
func NewSink(writer Writer, capacity int) *Sink {
	if capacity <= 0 {
		capacity = defaultSinkCapacity
	}
	return &Sink{
		writer:  writer,
		queue:   bus.NewQueue[event](capacity),
		timeout: 5 * time.Second,
	}
}

// OnFill implements exchange.Listener.
func (s *Sink) OnFill(fill model.Fill) {
	if err := s.queue.TryPublish(event{fill: &fill}); err != nil {
		logs.Errorf("sink drop fill, instrument: %s, order: %d, err: %+v", fill.Instrument, fill.OrderID, err)
	}
}

// OnOrderClosed implements exchange.Listener.
func (s *Sink) OnOrderClosed(state model.OrderState) {
	if err := s.queue.TryPublish(event{state: &state}); err != nil {
		logs.Errorf("sink drop order, instrument: %s, order: %d, err: %+v", state.Instrument, state.OrderID, err)
	}
}

// Run writes queued events until Close has drained the queue. Cancelling ctx
// does not stop Run, so events accepted before Close are always written;
// ctx only bounds each write together with the write timeout.
func (s *Sink) Run(ctx context.Context) {
	s.queue.Run(context.WithoutCancel(ctx), func(e event) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		var err error
		switch {
		case e.fill != nil:
			err = s.writer.SaveFill(wctx, *e.fill)
		case e.state != nil:
			err = s.writer.SaveOrderState(wctx, *e.state)
		}
		if err != nil {
			atomic.AddUint64(&s.failed, 1)
			logs.Errorf("sink write, err: %+v", err)
		}
	})
}

// Close stops accepting events. Run returns once the queue is drained.
func (s *Sink) Close() {
	s.queue.Close()
}

// Dropped returns how many events were rejected by a full queue.
func (s *Sink) Dropped() uint64 {
	return s.queue.Dropped()
}

// Failed returns how many writes returned an error.
func (s *Sink) Failed() uint64 {
	return atomic.LoadUint64(&s.failed)
}
