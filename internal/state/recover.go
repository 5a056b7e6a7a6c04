package state

import (
	"context"

	"github.com/yanun0323/errors"

	"simexchange/internal/exchange"
	"simexchange/internal/model"
	"simexchange/internal/recorder"
)

// RecoverConfig controls WAL replay recovery.
type RecoverConfig struct {
	WALDir          string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
	Market          exchange.MarketConfig
}

// RecoverResult contains the rebuilt exchange and the positions it produced.
type RecoverResult struct {
	Exchange    *exchange.Exchange
	Positions   *PositionReducer
	Stats       recorder.Stats
	LastSeq     uint64
	LastEventTs int64
}

// Recover rebuilds positions by replaying recorded bars into a fresh
// exchange. seed places the orders that should be resting before the first
// bar; the replay is deterministic for identical seeds and recordings.
func Recover(ctx context.Context, cfg RecoverConfig, seed func(*exchange.Exchange) error) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, errors.New("wal dir is empty")
	}

	positions := NewPositionReducer()
	ex := exchange.New(exchange.Config{Market: cfg.Market, Listener: positions})
	if seed != nil {
		if err := seed(ex); err != nil {
			return RecoverResult{}, errors.Wrap(err, "seed orders")
		}
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             cfg.WALDir,
		FilePrefix:      cfg.FilePrefix,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	var (
		lastSeq     uint64
		lastEventTs int64
		rejected    uint64
	)
	stats, err := pb.Run(ctx, func(header recorder.Header, bar model.Bar) error {
		lastSeq = header.Seq
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}
		if err := ex.UpdateMarketData(bar); err != nil {
			rejected++
		}
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}
	stats.Rejected = rejected

	return RecoverResult{
		Exchange:    ex,
		Positions:   positions,
		Stats:       stats,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
	}, nil
}
