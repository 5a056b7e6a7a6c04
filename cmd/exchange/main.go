package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/chaos"
	"simexchange/internal/exchange"
	"simexchange/internal/feed"
	"simexchange/internal/mdg"
	"simexchange/internal/obs"
	"simexchange/internal/ops"
	"simexchange/internal/recorder"
	"simexchange/internal/risk"
	"simexchange/internal/state"
	"simexchange/internal/store"
	"simexchange/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("exchange: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	replayDir := flag.String("replay-dir", "", "Bar WAL directory for replay mode")
	replayPrefix := flag.String("replay-prefix", "", "WAL file prefix (default: bars)")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	replayNoChecksum := flag.Bool("replay-no-checksum", false, "Disable checksum validation")
	snapshotPath := flag.String("snapshot-path", "", "Position snapshot output (overrides config)")
	verifySnapshot := flag.String("verify-snapshot", "", "Compare replayed positions against this snapshot")
	syntheticRounds := flag.Int("synthetic-rounds", 0, "Generate this many bars per symbol instead of using the feed")
	syntheticSeed := flag.Int64("synthetic-seed", 1, "Seed of the synthetic bar generator")
	syntheticPrice := flag.String("synthetic-price", "100", "Start price of the synthetic bar generator")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	if *snapshotPath != "" {
		loaded.Snapshot.Path = *snapshotPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loaded.Features.EnableProfiling {
		profiler, err := startProfiler(loaded.Profiling)
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	positions := state.NewPositionReducer()
	listeners := exchange.Listeners{positions}

	var wg sync.WaitGroup
	if loaded.Features.EnableStore {
		sink, closeStore, err := openStore(ctx, loaded)
		if err != nil {
			return err
		}
		listeners = append(listeners, sink)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(ctx)
		}()
		defer func() {
			sink.Close()
			wg.Wait()
			closeStore()
			logs.Infof("store closed, dropped: %d, failed: %d", sink.Dropped(), sink.Failed())
		}()
	}

	ex := exchange.New(exchange.Config{
		Market:   loaded.Market,
		Listener: listeners,
		Metrics:  metrics,
	})
	gate := risk.NewGate(risk.NewEngine(loaded.Risk), ex, positions)
	ids, err := ops.PlaceOrders(gate, loaded.Orders)
	if err != nil {
		return err
	}
	logs.Infof("startup orders placed, count: %d", len(ids))

	var consumer recorder.Consumer = ex
	var injector *chaos.Injector
	if loaded.Features.EnableChaos {
		engine, err := chaos.NewEngine(loaded.Chaos)
		if err != nil {
			return err
		}
		injector = chaos.NewInjector(engine, ex)
		consumer = injector
		logs.Infof("chaos enabled, config: %+v", loaded.Chaos)
	}

	switch {
	case *replayDir != "":
		err = runReplay(ctx, consumer, recorder.PlaybackConfig{
			Dir:             *replayDir,
			FilePrefix:      *replayPrefix,
			Speed:           *replaySpeed,
			DisableChecksum: *replayNoChecksum,
		})
	case *syntheticRounds > 0:
		err = runSynthetic(ctx, consumer, loaded, *syntheticRounds, *syntheticSeed, *syntheticPrice)
	default:
		err = runLive(ctx, consumer, loaded)
	}
	if err != nil {
		return err
	}
	if injector != nil {
		injector.Flush()
		logs.Infof("chaos done, rejected: %d", injector.Rejected())
	}

	logs.Infof("metrics: %+v", metrics.Snapshot())
	return finish(positions, loaded.Snapshot.Path, *verifySnapshot)
}

func startProfiler(cfg ops.ProfilingConfig) (*pyroscope.Profiler, error) {
	name := cfg.ApplicationName
	if name == "" {
		name = "simexchange"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return profiler, nil
}

func openStore(ctx context.Context, loaded ops.Loaded) (*store.Sink, func(), error) {
	if loaded.Journal != "" {
		j, err := store.OpenJournal(loaded.Journal)
		if err != nil {
			return nil, nil, err
		}
		logs.Infof("journal ready, path: %s", loaded.Journal)
		return store.NewSink(j, loaded.SinkSize), func() { _ = j.Close() }, nil
	}

	client, err := conn.New(loaded.Store)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping postgres")
	}
	s, err := store.New(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logs.Info("store ready")
	return store.NewSink(s, loaded.SinkSize), func() { _ = client.Close() }, nil
}

func runReplay(ctx context.Context, consumer recorder.Consumer, cfg recorder.PlaybackConfig) error {
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return err
	}
	stats, err := pb.Replay(ctx, consumer)
	if err != nil {
		return errors.Wrap(err, "replay")
	}
	logs.Infof("replay done, files: %d, records: %d, rejected: %d", stats.Files, stats.Records, stats.Rejected)
	return nil
}

func runSynthetic(ctx context.Context, consumer recorder.Consumer, loaded ops.Loaded, rounds int, seed int64, price string) error {
	symbols := loaded.Feed.Symbols
	if len(symbols) == 0 {
		for _, o := range loaded.Orders {
			symbols = append(symbols, o.Symbol)
		}
	}
	basePrice, err := decimal.NewFromString(price)
	if err != nil {
		return errors.Wrapf(err, "synthetic price %q", price)
	}
	g, err := mdg.NewGenerator(mdg.GeneratorConfig{
		Symbols:   dedupe(symbols),
		Start:     time.Now().UTC().Truncate(time.Minute),
		BasePrice: basePrice,
		Seed:      seed,
	})
	if err != nil {
		return err
	}

	if loaded.Features.EnableRecorder {
		w, err := recorder.NewWriter(loaded.Recorder)
		if err != nil {
			return err
		}
		defer closeRecorder(w)
		consumer = recorder.NewTee(consumer, w)
	}

	applied, rejected, err := g.Run(ctx, rounds, consumer)
	if err != nil {
		return err
	}
	logs.Infof("synthetic done, applied: %d, rejected: %d", applied, rejected)
	return nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := symbols[:0:0]
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func closeRecorder(w *recorder.Writer) {
	if err := w.Close(); err != nil {
		logs.Errorf("close recorder, err: %+v", err)
	}
	logs.Infof("recorder closed, seq: %d", w.Seq())
}

func runLive(ctx context.Context, consumer feed.Consumer, loaded ops.Loaded) error {
	if !loaded.Features.EnableFeed {
		return errors.New("no feed configured; set feed.symbols, -synthetic-rounds or -replay-dir")
	}

	if loaded.Features.EnableRecorder {
		w, err := recorder.NewWriter(loaded.Recorder)
		if err != nil {
			return err
		}
		defer closeRecorder(w)
		consumer = recorder.NewTee(consumer, w)
	}

	f, err := feed.New(loaded.Feed, consumer)
	if err != nil {
		return err
	}
	if err := f.Run(ctx); err != nil {
		return err
	}
	received, applied, rejected := f.Stats()
	logs.Infof("feed stopped, received: %d, applied: %d, rejected: %d", received, applied, rejected)
	return nil
}

func finish(positions *state.PositionReducer, outPath, verifyPath string) error {
	snap := positions.Snapshot()
	if outPath != "" {
		if err := state.WriteSnapshot(outPath, snap); err != nil {
			return err
		}
		logs.Infof("positions written, path: %s, instruments: %d", outPath, len(snap.Positions))
	}
	if verifyPath != "" {
		expected, err := state.ReadSnapshot(verifyPath)
		if err != nil {
			return err
		}
		if err := state.CompareSnapshots(expected, snap); err != nil {
			return errors.Wrap(err, "verify snapshot")
		}
		logs.Info("positions match snapshot")
	}
	return nil
}
