package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.IncBarApplied()
	m.AddFills(3)
	m.ObserveBar(time.Millisecond)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsConcurrentCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.IncBarApplied()
				m.AddFills(2)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(800), snap.BarsApplied)
	assert.Equal(t, uint64(1600), snap.Fills)
}

func TestLatencyStats(t *testing.T) {
	var l LatencyStats
	l.Observe(-time.Second)
	l.Observe(2 * time.Millisecond)
	l.Observe(4 * time.Millisecond)

	snap := l.Snapshot()
	assert.Equal(t, uint64(2), snap.Count)
	assert.Equal(t, 2*time.Millisecond, snap.Min)
	assert.Equal(t, 4*time.Millisecond, snap.Max)
	assert.Equal(t, 3*time.Millisecond, snap.Avg)
}
