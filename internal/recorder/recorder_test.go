package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"simexchange/internal/exchange"
	"simexchange/internal/model"
	"simexchange/internal/model/enum"
	"simexchange/pkg/exception"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func testBar(symbol string, minute int, volume, vwap string) model.Bar {
	price := decimal.RequireFromString(vwap)
	return model.Bar{
		Symbol:    symbol,
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    decimal.NewNullDecimal(decimal.RequireFromString(volume)),
		Count:     3,
		VWAP:      decimal.NewNullDecimal(price),
	}
}

func writeBars(t *testing.T, cfg Config, bars []model.Bar) {
	t.Helper()
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for _, bar := range bars {
		if err := w.Append(bar); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func readBars(t *testing.T, dir string) []model.Bar {
	t.Helper()
	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	var out []model.Bar
	var lastSeq uint64
	if _, err := p.Run(context.Background(), func(h Header, bar model.Bar) error {
		if h.Seq <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", h.Seq, lastSeq)
		}
		lastSeq = h.Seq
		if !h.Time().Equal(bar.Timestamp) {
			t.Fatalf("header time %s, bar time %s", h.Time(), bar.Timestamp)
		}
		out = append(out, bar)
		return nil
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out
}

func TestWriterPlaybackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bars := []model.Bar{
		testBar("AAPL", 0, "5000", "100"),
		testBar("MSFT", 0, "700", "410.25"),
		testBar("AAPL", 1, "4000", "101.5"),
	}
	writeBars(t, DefaultConfig(dir), bars)

	got := readBars(t, dir)
	if len(got) != len(bars) {
		t.Fatalf("bars mismatch: got %d want %d", len(got), len(bars))
	}
	for i := range bars {
		if got[i].Symbol != bars[i].Symbol || !got[i].Timestamp.Equal(bars[i].Timestamp) {
			t.Fatalf("bar %d mismatch: got %+v want %+v", i, got[i], bars[i])
		}
		if !got[i].VWAP.Decimal.Equal(bars[i].VWAP.Decimal) || !got[i].Volume.Decimal.Equal(bars[i].Volume.Decimal) {
			t.Fatalf("bar %d values mismatch: got %+v want %+v", i, got[i], bars[i])
		}
	}
}

func TestWriterRotatesSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = 256

	var bars []model.Bar
	for i := range 20 {
		bars = append(bars, testBar("AAPL", i, "1000", "100"))
	}
	writeBars(t, cfg, bars)

	files, err := collectSegments(dir, cfg.FilePrefix)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected rotation, got %d segment(s)", len(files))
	}
	if got := readBars(t, dir); len(got) != len(bars) {
		t.Fatalf("bars mismatch: got %d want %d", len(got), len(bars))
	}

	// a second writer continues after the existing segments
	writeBars(t, cfg, []model.Bar{testBar("AAPL", 20, "1000", "100")})
	more, err := collectSegments(dir, cfg.FilePrefix)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(more) != len(files)+1 {
		t.Fatalf("segments: got %d want %d", len(more), len(files)+1)
	}
	if got := readBars(t, dir); len(got) != len(bars)+1 {
		t.Fatalf("bars mismatch after reopen: got %d want %d", len(got), len(bars)+1)
	}
}

func TestAppendAfterClose(t *testing.T) {
	w, err := NewWriter(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Append(testBar("AAPL", 0, "1", "1")); !errors.Is(err, exception.ErrWALClosed) {
		t.Fatalf("expected ErrWALClosed, got %v", err)
	}
}

func TestPlaybackDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, DefaultConfig(dir), []model.Bar{testBar("AAPL", 0, "5000", "100")})

	files, err := collectSegments(dir, defaultFilePrefix)
	if err != nil || len(files) != 1 {
		t.Fatalf("collect: %v, files: %v", err, files)
	}
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	raw[recordHeaderSize+5] ^= 0xff
	if err := os.WriteFile(files[0], raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	_, err = p.Run(context.Background(), func(Header, model.Bar) error { return nil })
	if !errors.Is(err, exception.ErrWALChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestReaderRejectsForeignData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, segmentName(defaultFilePrefix, 1))
	junk := make([]byte, recordHeaderSize+recordChecksumSize)
	copy(junk, "NOPE")
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	_, err = p.Run(context.Background(), func(Header, model.Bar) error { return nil })
	if !errors.Is(err, exception.ErrWALMagic) {
		t.Fatalf("expected magic error, got %v", err)
	}
}

type recordingClock struct {
	sleeps []time.Duration
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, DefaultConfig(dir), []model.Bar{
		testBar("AAPL", 0, "1", "1"),
		testBar("AAPL", 1, "1", "1"),
		testBar("AAPL", 3, "1", "1"),
	})

	clock := &recordingClock{}
	p, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 60})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	if _, err := p.WithClock(clock).Run(context.Background(), func(Header, model.Bar) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps: got %v want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Fatalf("sleep %d: got %s want %s", i, clock.sleeps[i], want[i])
		}
	}
}

func TestPlaybackConfigValidate(t *testing.T) {
	if _, err := NewPlayback(PlaybackConfig{}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := NewPlayback(PlaybackConfig{Dir: "x", Speed: -1}); err == nil {
		t.Fatalf("expected error for negative speed")
	}
	if _, err := NewWriter(Config{}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestTeeRecordsAcceptedBarsOnly(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	tee := NewTee(exchange.New(exchange.Config{}), w)
	if err := tee.UpdateMarketData(testBar("AAPL", 0, "100", "10")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tee.UpdateMarketData(testBar("", 1, "100", "10")); err == nil {
		t.Fatalf("expected rejection of bar without symbol")
	}
	bad := testBar("AAPL", 2, "100", "10")
	bad.Volume = decimal.NullDecimal{}
	if err := tee.UpdateMarketData(bad); err == nil {
		t.Fatalf("expected rejection of bar without volume")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := readBars(t, dir); len(got) != 1 {
		t.Fatalf("recorded bars: got %d want 1", len(got))
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	var bars []model.Bar
	for i := range 30 {
		bars = append(bars, testBar("AAPL", i, "1000", decimal.NewFromInt(int64(100+i%7)).String()))
		bars = append(bars, testBar("MSFT", i, "333", "410.5"))
	}
	writeBars(t, DefaultConfig(dir), bars)

	run := func() []model.OrderState {
		ex := exchange.New(exchange.Config{})
		for _, symbol := range []string{"AAPL", "MSFT"} {
			m := ex.GetMarket(symbol)
			for _, side := range []enum.OrderSide{enum.OrderSideBuy, enum.OrderSideSell} {
				if _, err := m.AddOrder(exchange.OrderRequest{
					Side:              side,
					Quantity:          decimal.NewFromInt(2500),
					ParticipationRate: decimal.NewNullDecimal(decimal.RequireFromString("0.07")),
					LimitPrice:        decimal.NewNullDecimal(decimal.NewFromInt(104)),
				}); err != nil {
					t.Fatalf("add order: %v", err)
				}
			}
		}

		p, err := NewPlayback(PlaybackConfig{Dir: dir, StopOnReject: true})
		if err != nil {
			t.Fatalf("new playback: %v", err)
		}
		stats, err := p.Replay(context.Background(), ex)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if stats.Records != uint64(len(bars)) || stats.Rejected != 0 {
			t.Fatalf("stats: %+v", stats)
		}

		var out []model.OrderState
		for _, symbol := range ex.GetSymbols() {
			out = append(out, ex.GetMarket(symbol).GetBuyOrders()...)
			out = append(out, ex.GetMarket(symbol).GetSellOrders()...)
		}
		return out
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("order count differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.OrderID != b.OrderID || !a.FilledQty.Equal(b.FilledQty) || !a.AveragePrice.Equal(b.AveragePrice) || a.Status != b.Status {
			t.Fatalf("replay diverged at %d: %+v vs %+v", i, a, b)
		}
	}
}
