package chaos

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"simexchange/internal/model"
)

// Consumer receives the bars that survive the chaos rules.
type Consumer interface {
	UpdateMarketData(bar model.Bar) error
}

// Config controls chaos injection behavior.
type Config struct {
	Seed          int64   `json:"seed"`
	DropRate      float64 `json:"dropRate"`
	DuplicateRate float64 `json:"duplicateRate"`
	ReorderWindow int     `json:"reorderWindow"`
	// NullVolumeRate blanks the volume of a bar, which the exchange must reject.
	NullVolumeRate float64 `json:"nullVolumeRate"`
}

// Engine applies chaos rules to bars.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []model.Bar
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.NullVolumeRate < 0 || c.NullVolumeRate > 1 {
		return fmt.Errorf("nullVolumeRate must be between 0 and 1")
	}
	if c.ReorderWindow <= 0 {
		return fmt.Errorf("reorderWindow must be >= 1")
	}
	return nil
}

// Process applies chaos to a single bar and returns any output bars.
func (e *Engine) Process(bar model.Bar) []model.Bar {
	if e == nil {
		return []model.Bar{bar}
	}
	if e.shouldDrop() {
		return nil
	}
	bar = e.applyNullVolume(bar)
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(bar)
	}
	e.pending = append(e.pending, bar)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	idx := e.rng.Intn(len(e.pending))
	out := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return e.applyDuplicate(out)
}

// Flush returns any buffered bars after processing completes.
func (e *Engine) Flush() []model.Bar {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]model.Bar, 0, len(e.pending))
	for len(e.pending) > 0 {
		idx := e.rng.Intn(len(e.pending))
		bar := e.pending[idx]
		e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
		out = append(out, e.applyDuplicate(bar)...)
	}
	return out
}

func (e *Engine) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine) applyDuplicate(bar model.Bar) []model.Bar {
	out := []model.Bar{bar}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, bar)
	}
	return out
}

func (e *Engine) applyNullVolume(bar model.Bar) model.Bar {
	if e.cfg.NullVolumeRate > 0 && e.rng.Float64() < e.cfg.NullVolumeRate {
		bar.Volume.Valid = false
	}
	return bar
}

// Injector runs bars through an engine before handing them to a consumer.
// Consumer errors are counted, not returned, so upstream loops keep going.
type Injector struct {
	mu       sync.Mutex
	engine   *Engine
	next     Consumer
	rejected int
}

// NewInjector wraps next with the engine.
func NewInjector(engine *Engine, next Consumer) *Injector {
	return &Injector{engine: engine, next: next}
}

// UpdateMarketData implements Consumer.
func (in *Injector) UpdateMarketData(bar model.Bar) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.forwardLocked(in.engine.Process(bar))
	return nil
}

// Flush forwards the bars still held back by reordering.
func (in *Injector) Flush() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.forwardLocked(in.engine.Flush())
}

// Rejected returns how many forwarded bars the consumer refused.
func (in *Injector) Rejected() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rejected
}

func (in *Injector) forwardLocked(bars []model.Bar) {
	for _, bar := range bars {
		if err := in.next.UpdateMarketData(bar); err != nil {
			in.rejected++
		}
	}
}
