package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Snapshot captures positions at a point in time.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	Positions   []PositionEntry `json:"positions"`
}

// PositionEntry is a single instrument position entry.
type PositionEntry struct {
	Instrument   string          `json:"instrument"`
	Net          decimal.Decimal `json:"net"`
	Bought       decimal.Decimal `json:"bought"`
	Sold         decimal.Decimal `json:"sold"`
	BuyNotional  decimal.Decimal `json:"buyNotional"`
	SellNotional decimal.Decimal `json:"sellNotional"`
	Fills        uint64          `json:"fills"`
}

// Snapshot builds a snapshot from current positions.
func (r *PositionReducer) Snapshot() Snapshot {
	r.mu.RLock()
	lastTs := r.lastTs
	r.mu.RUnlock()
	return r.SnapshotWithMeta(0, lastTs)
}

// SnapshotWithMeta builds a snapshot with event metadata.
func (r *PositionReducer) SnapshotWithMeta(lastSeq uint64, lastEventTs int64) Snapshot {
	r.mu.RLock()
	entries := make([]PositionEntry, 0, len(r.positions))
	for instrument, p := range r.positions {
		entries = append(entries, PositionEntry{
			Instrument:   instrument,
			Net:          p.Net(),
			Bought:       p.Bought,
			Sold:         p.Sold,
			BuyNotional:  p.BuyNotional,
			SellNotional: p.SellNotional,
			Fills:        p.Fills,
		})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Instrument < entries[j].Instrument
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Positions:   entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create snapshot dir %s", dir)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "read snapshot %s", path)
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrapf(err, "unmarshal snapshot %s", path)
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same positions.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.Instrument] = entry
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.Instrument]
		if !ok {
			return fmt.Errorf("snapshot missing instrument: %s", entry.Instrument)
		}
		if !want.Bought.Equal(entry.Bought) || !want.Sold.Equal(entry.Sold) {
			return fmt.Errorf("snapshot qty mismatch: instrument=%s expected=%s/%s actual=%s/%s",
				entry.Instrument, want.Bought, want.Sold, entry.Bought, entry.Sold)
		}
		if !want.BuyNotional.Equal(entry.BuyNotional) || !want.SellNotional.Equal(entry.SellNotional) {
			return fmt.Errorf("snapshot notional mismatch: instrument=%s expected=%s/%s actual=%s/%s",
				entry.Instrument, want.BuyNotional, want.SellNotional, entry.BuyNotional, entry.SellNotional)
		}
	}
	return nil
}
