package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	yaml "go.yaml.in/yaml/v3"

	"simexchange/internal/chaos"
	"simexchange/internal/exchange"
	"simexchange/internal/feed"
	"simexchange/internal/model/enum"
	"simexchange/internal/recorder"
	"simexchange/internal/risk"
	"simexchange/pkg/conn"
)

// FileConfig mirrors the config file layout.
type FileConfig struct {
	Market    MarketConfig       `json:"market"`
	Feed      FeedConfig         `json:"feed"`
	Recorder  RecorderConfig     `json:"recorder"`
	Store     StoreConfig        `json:"store"`
	Profiling ProfilingConfig    `json:"profiling"`
	Snapshot  SnapshotConfig     `json:"snapshot"`
	Risk      risk.Config        `json:"risk"`
	Chaos     chaos.Config       `json:"chaos"`
	Orders    []OrderConfig      `json:"orders"`
	Features  FeatureFlagsConfig `json:"features"`
}

// MarketConfig tunes every market of the exchange.
type MarketConfig struct {
	DefaultParticipationRate decimal.NullDecimal `json:"defaultParticipationRate"`
	QuantityPlaces           *int32              `json:"quantityPlaces"`
	PricePlaces              int32               `json:"pricePlaces"`
}

// FeedConfig selects the live bar stream.
type FeedConfig struct {
	URL      string   `json:"url"`
	Symbols  []string `json:"symbols"`
	Interval string   `json:"interval"`
}

// RecorderConfig describes the bar WAL.
type RecorderConfig struct {
	Dir             string `json:"dir"`
	FilePrefix      string `json:"filePrefix"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`
	SyncOnFlush     bool   `json:"syncOnFlush"`
}

// StoreConfig describes the PostgreSQL connection. A JournalPath selects the
// embedded bolt journal instead.
type StoreConfig struct {
	Host          string            `json:"host"`
	Port          int               `json:"port"`
	User          string            `json:"user"`
	Password      string            `json:"password"`
	Database      string            `json:"database"`
	SSLMode       string            `json:"sslMode"`
	Params        map[string]string `json:"params"`
	ConnString    string            `json:"connString"`
	MaxOpenConns  int               `json:"maxOpenConns"`
	QueueCapacity int               `json:"queueCapacity"`
	JournalPath   string            `json:"journalPath"`
}

// ProfilingConfig describes the continuous profiler target.
type ProfilingConfig struct {
	ApplicationName string `json:"applicationName"`
	ServerAddress   string `json:"serverAddress"`
}

// SnapshotConfig describes where positions are written on shutdown.
type SnapshotConfig struct {
	Path string `json:"path"`
}

// OrderConfig describes an order placed at startup.
type OrderConfig struct {
	Symbol            string              `json:"symbol"`
	Side              string              `json:"side"`
	Quantity          decimal.Decimal     `json:"quantity"`
	LimitPrice        decimal.NullDecimal `json:"limitPrice"`
	ParticipationRate decimal.NullDecimal `json:"participationRate"`
	ClientOrderID     string              `json:"clientOrderId"`
	StartTime         time.Time           `json:"startTime"`
	EndTime           time.Time           `json:"endTime"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableFeed      *bool `json:"enableFeed"`
	EnableRecorder  *bool `json:"enableRecorder"`
	EnableStore     *bool `json:"enableStore"`
	EnableProfiling *bool `json:"enableProfiling"`
	EnableChaos     *bool `json:"enableChaos"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableFeed      bool
	EnableRecorder  bool
	EnableStore     bool
	EnableProfiling bool
	EnableChaos     bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Market    exchange.MarketConfig
	Feed      feed.Config
	Recorder  recorder.Config
	Store     conn.Option
	Journal   string
	SinkSize  int
	Profiling ProfilingConfig
	Snapshot  SnapshotConfig
	Risk      risk.Config
	Chaos     chaos.Config
	Orders    []OrderSpec
	Features  FeatureFlags
}

// OrderSpec is the resolved startup order.
type OrderSpec struct {
	Symbol  string
	Request exchange.OrderRequest
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	loaded, _ := resolve(FileConfig{})
	return loaded
}

// Load reads a JSON or YAML config file, chosen by extension. An empty path
// yields Default.
func Load(path string) (Loaded, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if data, err = yamlToJSON(data); err != nil {
			return Loaded{}, errors.Wrapf(err, "convert yaml config %s", path)
		}
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(err, "unmarshal config %s", path)
	}
	return resolve(cfg)
}

// yamlToJSON re-encodes a YAML document so both formats share the json tags
// of FileConfig.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return sonic.Marshal(doc)
}

func resolve(cfg FileConfig) (Loaded, error) {
	market, err := resolveMarket(cfg.Market, len(cfg.Feed.Symbols) != 0)
	if err != nil {
		return Loaded{}, err
	}
	orders, err := resolveOrders(cfg.Orders)
	if err != nil {
		return Loaded{}, err
	}
	features := resolveFeatures(cfg)

	rec := recorder.DefaultConfig(cfg.Recorder.Dir)
	if cfg.Recorder.FilePrefix != "" {
		rec.FilePrefix = cfg.Recorder.FilePrefix
	}
	if cfg.Recorder.SegmentMaxBytes > 0 {
		rec.SegmentMaxBytes = cfg.Recorder.SegmentMaxBytes
	}
	rec.SyncOnFlush = cfg.Recorder.SyncOnFlush

	interval := cfg.Feed.Interval
	if interval == "" {
		interval = feed.DefaultInterval
	}

	return Loaded{
		Market: market,
		Feed: feed.Config{
			URL:      cfg.Feed.URL,
			Symbols:  cfg.Feed.Symbols,
			Interval: interval,
		},
		Recorder: rec,
		Store: conn.Option{
			Host:         cfg.Store.Host,
			Port:         cfg.Store.Port,
			User:         cfg.Store.User,
			Password:     cfg.Store.Password,
			Database:     cfg.Store.Database,
			SSLMode:      cfg.Store.SSLMode,
			Params:       cfg.Store.Params,
			ConnString:   cfg.Store.ConnString,
			MaxOpenConns: cfg.Store.MaxOpenConns,
		},
		Journal:   cfg.Store.JournalPath,
		SinkSize:  cfg.Store.QueueCapacity,
		Profiling: cfg.Profiling,
		Snapshot:  cfg.Snapshot,
		Risk:      cfg.Risk,
		Chaos:     cfg.Chaos,
		Orders:    orders,
		Features:  features,
	}, nil
}

// resolveMarket defaults the quantity precision to the feed's volume
// precision when a live feed is configured, and to whole units otherwise.
func resolveMarket(cfg MarketConfig, fed bool) (exchange.MarketConfig, error) {
	market := exchange.DefaultMarketConfig()
	if cfg.DefaultParticipationRate.Valid {
		rate := cfg.DefaultParticipationRate.Decimal
		if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return exchange.MarketConfig{}, fmt.Errorf("market defaultParticipationRate must be in (0, 1]: %s", rate)
		}
		market.DefaultParticipationRate = rate
	}
	switch {
	case cfg.QuantityPlaces != nil:
		if *cfg.QuantityPlaces < 0 {
			return exchange.MarketConfig{}, fmt.Errorf("market quantityPlaces must be >= 0")
		}
		market.QuantityPlaces = *cfg.QuantityPlaces
	case fed:
		market.QuantityPlaces = feed.QuantityPlaces
	}
	if cfg.PricePlaces < 0 {
		return exchange.MarketConfig{}, fmt.Errorf("market pricePlaces must be >= 0")
	}
	if cfg.PricePlaces > 0 {
		market.PricePlaces = cfg.PricePlaces
	}
	return market, nil
}

func resolveOrders(cfgs []OrderConfig) ([]OrderSpec, error) {
	specs := make([]OrderSpec, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Symbol == "" {
			return nil, fmt.Errorf("order %d: symbol is empty", i)
		}
		side, ok := enum.ParseOrderSide(cfg.Side)
		if !ok {
			return nil, fmt.Errorf("order %d: unknown side %q", i, cfg.Side)
		}
		if !cfg.Quantity.IsPositive() {
			return nil, fmt.Errorf("order %d: quantity must be > 0", i)
		}
		specs = append(specs, OrderSpec{
			Symbol: cfg.Symbol,
			Request: exchange.OrderRequest{
				Side:              side,
				Quantity:          cfg.Quantity,
				LimitPrice:        cfg.LimitPrice,
				ClientOrderID:     cfg.ClientOrderID,
				ParticipationRate: cfg.ParticipationRate,
				StartTime:         cfg.StartTime,
				EndTime:           cfg.EndTime,
			},
		})
	}
	return specs, nil
}

func resolveFeatures(cfg FileConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableFeed:      len(cfg.Feed.Symbols) != 0,
		EnableRecorder:  cfg.Recorder.Dir != "",
		EnableStore:     cfg.Store.ConnString != "" || cfg.Store.Database != "" || cfg.Store.JournalPath != "",
		EnableProfiling: cfg.Profiling.ServerAddress != "",
	}
	if v := cfg.Features.EnableFeed; v != nil {
		flags.EnableFeed = *v
	}
	if v := cfg.Features.EnableRecorder; v != nil {
		flags.EnableRecorder = *v
	}
	if v := cfg.Features.EnableStore; v != nil {
		flags.EnableStore = *v
	}
	if v := cfg.Features.EnableProfiling; v != nil {
		flags.EnableProfiling = *v
	}
	if v := cfg.Features.EnableChaos; v != nil {
		flags.EnableChaos = *v
	}
	return flags
}

// Placer accepts orders by instrument. *exchange.Exchange and *risk.Gate
// satisfy it.
type Placer interface {
	AddOrder(instrument string, req exchange.OrderRequest) (uint64, error)
}

// PlaceOrders submits the startup orders and returns their ids.
func PlaceOrders(placer Placer, specs []OrderSpec) ([]uint64, error) {
	ids := make([]uint64, 0, len(specs))
	for _, spec := range specs {
		id, err := placer.AddOrder(spec.Symbol, spec.Request)
		if err != nil {
			return ids, errors.Wrapf(err, "place order, symbol: %s", spec.Symbol)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
