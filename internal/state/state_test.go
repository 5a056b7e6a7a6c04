package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simexchange/internal/exchange"
	"simexchange/internal/model"
	"simexchange/internal/model/enum"
	"simexchange/internal/recorder"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fill(instrument string, side enum.OrderSide, qty, price string) model.Fill {
	return model.Fill{
		OrderID:    1,
		Instrument: instrument,
		Side:       side,
		Price:      d(price),
		Quantity:   d(qty),
		Timestamp:  t0,
	}
}

func bar(symbol string, minute int, volume, vwap string) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
		Open:      d(vwap),
		High:      d(vwap),
		Low:       d(vwap),
		Close:     d(vwap),
		Volume:    decimal.NewNullDecimal(d(volume)),
		VWAP:      decimal.NewNullDecimal(d(vwap)),
	}
}

func TestPositionReducerApplyFill(t *testing.T) {
	r := NewPositionReducer()
	r.ApplyFill(fill("AAPL", enum.OrderSideBuy, "10", "100"))
	r.ApplyFill(fill("AAPL", enum.OrderSideSell, "4", "110"))
	r.ApplyFill(fill("MSFT", enum.OrderSideSell, "2", "400"))

	aapl := r.Position("AAPL")
	assert.True(t, d("6").Equal(aapl.Net()), aapl.Net().String())
	assert.True(t, d("-560").Equal(aapl.Cash()), aapl.Cash().String())
	assert.Equal(t, uint64(2), aapl.Fills)

	msft := r.Position("MSFT")
	assert.True(t, d("-2").Equal(msft.Net()))
	assert.Equal(t, 2, r.Count())
}

func TestSnapshotWriteReadCompare(t *testing.T) {
	r := NewPositionReducer()
	r.ApplyFill(fill("MSFT", enum.OrderSideSell, "2", "400.5"))
	r.ApplyFill(fill("AAPL", enum.OrderSideBuy, "10", "100.25"))

	snap := r.SnapshotWithMeta(7, t0.UnixNano())
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "AAPL", snap.Positions[0].Instrument)

	path := filepath.Join(t.TempDir(), "nested", "positions.json")
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.LastSeq)
	require.NoError(t, CompareSnapshots(snap, loaded))

	restored := NewPositionReducer()
	restored.ApplySnapshot(loaded)
	require.NoError(t, CompareSnapshots(snap, restored.Snapshot()))

	restored.ApplyFill(fill("AAPL", enum.OrderSideBuy, "1", "1"))
	assert.Error(t, CompareSnapshots(snap, restored.Snapshot()))
}

func TestReducerAsListener(t *testing.T) {
	r := NewPositionReducer()
	ex := exchange.New(exchange.Config{Listener: r})
	m := ex.GetMarket("AAPL")
	_, err := m.AddOrder(exchange.OrderRequest{
		Side:              enum.OrderSideBuy,
		Quantity:          d("100"),
		ParticipationRate: decimal.NewNullDecimal(d("0.5")),
	})
	require.NoError(t, err)

	require.NoError(t, ex.UpdateMarketData(bar("AAPL", 0, "120", "10")))
	require.NoError(t, ex.UpdateMarketData(bar("AAPL", 1, "120", "12")))

	p := r.Position("AAPL")
	assert.True(t, d("100").Equal(p.Net()), p.Net().String())
	assert.True(t, d("1080").Equal(p.BuyNotional), p.BuyNotional.String())
	assert.Equal(t, uint64(1), r.Closed(enum.OrderStatusFilled))
}

func TestRecoverReplaysRecording(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	for i := range 10 {
		require.NoError(t, w.Append(bar("AAPL", i, "1000", "50")))
	}
	require.NoError(t, w.Close())

	seed := func(ex *exchange.Exchange) error {
		_, err := ex.GetMarket("AAPL").AddOrder(exchange.OrderRequest{
			Side:              enum.OrderSideSell,
			Quantity:          d("250"),
			ParticipationRate: decimal.NewNullDecimal(d("0.1")),
		})
		return err
	}

	first, err := Recover(context.Background(), RecoverConfig{WALDir: dir}, seed)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), first.Stats.Records)
	assert.Equal(t, uint64(10), first.LastSeq)
	assert.Equal(t, t0.Add(9*time.Minute).UnixNano(), first.LastEventTs)
	assert.True(t, d("-250").Equal(first.Positions.Position("AAPL").Net()))

	second, err := Recover(context.Background(), RecoverConfig{WALDir: dir}, seed)
	require.NoError(t, err)
	require.NoError(t, CompareSnapshots(first.Positions.Snapshot(), second.Positions.Snapshot()))

	_, err = Recover(context.Background(), RecoverConfig{}, nil)
	assert.Error(t, err)
}
