package recorder

import (
	"github.com/yanun0323/logs"

	"simexchange/internal/model"
)

// Tee forwards bars to a consumer and records the ones it accepts.
type Tee struct {
	next   Consumer
	writer *Writer
}

// NewTee wraps next so that accepted bars land in writer.
func NewTee(next Consumer, writer *Writer) *Tee {
	return &Tee{next: next, writer: writer}
}

// UpdateMarketData forwards the bar. A failed append is logged and does not
// fail the bar, which has already been applied.
func (t *Tee) UpdateMarketData(bar model.Bar) error {
	if err := t.next.UpdateMarketData(bar); err != nil {
		return err
	}
	if err := t.writer.Append(bar); err != nil {
		logs.Errorf("record bar, symbol: %s, ts: %s, err: %+v", bar.Symbol, bar.Timestamp, err)
	}
	return nil
}
