package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"simexchange/internal/codec"
	"simexchange/internal/model"
)

// Consumer receives replayed bars. *exchange.Exchange satisfies it.
type Consumer interface {
	UpdateMarketData(bar model.Bar) error
}

// PlaybackConfig controls WAL playback behavior.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
	// StopOnReject aborts playback when the consumer rejects a bar.
	StopOnReject bool
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats summarizes one playback run.
type Stats struct {
	Files    int
	Records  uint64
	Rejected uint64
}

// Playback replays WAL records in file order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays WAL records and calls the handler for each decoded bar.
func (p *Playback) Run(ctx context.Context, handler func(Header, model.Bar) error) (Stats, error) {
	var stats Stats
	if handler == nil {
		return stats, errors.New("playback handler is nil")
	}
	files, err := collectSegments(p.cfg.Dir, p.cfg.FilePrefix)
	if err != nil {
		return stats, err
	}

	var prevTS int64
	for _, path := range files {
		stats.Files++
		if err := p.playFile(ctx, path, handler, &prevTS, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Replay feeds every recorded bar into the consumer. Rejected bars are
// counted and skipped unless StopOnReject is set.
func (p *Playback) Replay(ctx context.Context, consumer Consumer) (Stats, error) {
	var rejected uint64
	stats, err := p.Run(ctx, func(h Header, bar model.Bar) error {
		if err := consumer.UpdateMarketData(bar); err != nil {
			if p.cfg.StopOnReject {
				return errors.Wrapf(err, "replay seq: %d", h.Seq)
			}
			rejected++
		}
		return nil
	})
	stats.Rejected = rejected
	return stats, err
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return errors.New("invalid playback config: Speed must be >= 0")
	}
	if c.MaxPayloadSize < 0 {
		return errors.New("invalid playback config: MaxPayloadSize must be >= 0")
	}
	return nil
}

func collectSegments(dir, filePrefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read wal dir %s", dir)
	}
	prefix := filePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(Header, model.Bar) error, prevTS *int64, stats *Stats) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		bar, err := codec.DecodeBar(payload)
		if err != nil {
			return errors.Wrapf(err, "decode %s seq: %d", path, header.Seq)
		}

		if err := p.pace(ctx, header, prevTS); err != nil {
			return err
		}
		stats.Records++
		if err := handler(header, bar); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, header Header, prevTS *int64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := header.TsEvent
	if current <= 0 {
		return nil
	}
	if *prevTS > 0 {
		if delta := current - *prevTS; delta > 0 {
			sleep := time.Duration(float64(delta) / p.cfg.Speed)
			if err := p.clock.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	*prevTS = current
	return nil
}
