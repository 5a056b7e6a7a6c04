package exchange

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simexchange/internal/model/enum"
	"simexchange/internal/obs"
	"simexchange/pkg/exception"
)

func TestGetMarketReturnsSingleInstance(t *testing.T) {
	metrics := obs.NewMetrics()
	ex := New(Config{Metrics: metrics})

	const workers = 32
	markets := make([]*Market, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			markets[i] = ex.GetMarket("AAPL")
		}()
	}
	wg.Wait()

	for _, m := range markets {
		assert.Same(t, markets[0], m)
	}
	assert.Equal(t, "AAPL", markets[0].GetInstrument())
	assert.Equal(t, uint64(1), metrics.Snapshot().MarketsCreated)
	assert.Equal(t, []string{"AAPL"}, ex.GetSymbols())
}

func TestGetSymbolsSorted(t *testing.T) {
	ex := New(Config{})
	for _, s := range []string{"MSFT", "AAPL", "IBM"} {
		ex.GetMarket(s)
	}
	assert.Equal(t, []string{"AAPL", "IBM", "MSFT"}, ex.GetSymbols())
}

func TestUpdateMarketDataRoutesBySymbol(t *testing.T) {
	ex := New(Config{})
	m := ex.GetMarket("AAPL")
	_, err := m.AddOrder(OrderRequest{Side: enum.OrderSideBuy, Quantity: d("1000"), ParticipationRate: nd("0.1")})
	require.NoError(t, err)

	require.NoError(t, ex.UpdateMarketData(newBar("AAPL", minute(0), "5000", "100")))
	assertDecimal(t, "500", m.GetBuyOrders()[0].FilledQty)

	// an unseen symbol gets a market of its own
	require.NoError(t, ex.UpdateMarketData(newBar("TSLA", minute(0), "100", "200")))
	assert.Equal(t, []string{"AAPL", "TSLA"}, ex.GetSymbols())
	last, ok := ex.GetMarket("TSLA").LastBar()
	require.True(t, ok)
	assertDecimal(t, "200", last.LastVWAP)
	assertDecimal(t, "500", m.GetBuyOrders()[0].FilledQty)
}

func TestUpdateMarketDataRejectsBarWithoutSymbol(t *testing.T) {
	metrics := obs.NewMetrics()
	ex := New(Config{Metrics: metrics})

	err := ex.UpdateMarketData(newBar("", minute(0), "1", "1"))
	require.ErrorIs(t, err, exception.ErrInvalidBar)
	assert.Empty(t, ex.GetSymbols())
	assert.Equal(t, uint64(1), metrics.Snapshot().BarsRejected)
}

func TestLookupMarket(t *testing.T) {
	ex := New(Config{})
	_, err := ex.LookupMarket("AAPL")
	require.ErrorIs(t, err, exception.ErrMarketNotFound)

	created := ex.GetMarket("AAPL")
	found, err := ex.LookupMarket("AAPL")
	require.NoError(t, err)
	assert.Same(t, created, found)
	assert.Same(t, created, ex.Book("AAPL"))
}

func TestRemoveMarketAndCleanup(t *testing.T) {
	ex := New(Config{})
	ex.GetMarket("A")
	ex.GetMarket("B")

	assert.True(t, ex.RemoveMarket("A"))
	assert.False(t, ex.RemoveMarket("A"))
	assert.Equal(t, []string{"B"}, ex.GetSymbols())

	ex.Cleanup()
	assert.Empty(t, ex.GetSymbols())
}

func TestMarketsAreIndependent(t *testing.T) {
	metrics := obs.NewMetrics()
	ex := New(Config{Metrics: metrics})

	const symbols = 8
	var wg sync.WaitGroup
	for i := range symbols {
		symbol := fmt.Sprintf("SYM%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				_, err := ex.GetMarket(symbol).AddOrder(OrderRequest{Side: enum.OrderSideSell, Quantity: d("10"), ParticipationRate: nd("0.5")})
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := range 50 {
				assert.NoError(t, ex.UpdateMarketData(newBar(symbol, minute(j), "4", "1")))
			}
		}()
	}
	wg.Wait()

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(symbols*50), snap.OrdersAccepted)
	assert.Equal(t, uint64(symbols*50), snap.BarsApplied)
	assert.Len(t, ex.GetSymbols(), symbols)
	for _, symbol := range ex.GetSymbols() {
		for _, s := range ex.GetMarket(symbol).GetSellOrders() {
			assert.True(t, s.FilledQty.LessThanOrEqual(s.OriginalQty))
		}
	}
}

func TestListenersFanOut(t *testing.T) {
	a, b := &eventLog{}, &eventLog{}
	ex := New(Config{Listener: Listeners{a, nil, b}})
	m := ex.GetMarket("A")

	id, err := m.AddOrder(OrderRequest{Side: enum.OrderSideBuy, Quantity: d("5"), ParticipationRate: nd("1")})
	require.NoError(t, err)
	require.NoError(t, m.UpdateMarketState(newBar("A", minute(0), "10", "3")))

	for _, l := range []*eventLog{a, b} {
		require.Len(t, l.Fills(), 1)
		require.Len(t, l.Closed(), 1)
		assert.Equal(t, id, l.Closed()[0].OrderID)
	}
}

func BenchmarkUpdateMarketState(b *testing.B) {
	m := NewMarket("BENCH", DefaultMarketConfig())
	for range 1000 {
		_, _ = m.AddOrder(OrderRequest{Side: enum.OrderSideBuy, Quantity: d("1000000000"), ParticipationRate: nd("0.01")})
	}

	i := 0
	for b.Loop() {
		_ = m.UpdateMarketState(newBar("BENCH", minute(i), "1000", "100"))
		i++
	}
}

func TestExchangeAddOrderRoutesByInstrument(t *testing.T) {
	ex := New(Config{})
	id, err := ex.AddOrder("AAPL", OrderRequest{Side: enum.OrderSideBuy, Quantity: d("10")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	id, err = ex.AddOrder("MSFT", OrderRequest{Side: enum.OrderSideSell, Quantity: d("10")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	_, err = ex.AddOrder("AAPL", OrderRequest{Side: enum.OrderSideBuy, Quantity: d("0")})
	require.ErrorIs(t, err, exception.ErrInvalidOrder)
	assert.Len(t, ex.GetMarket("AAPL").GetBuyOrders(), 1)
}
