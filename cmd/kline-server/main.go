package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctakline/internal/config"
	"ctakline/internal/domain"
	"ctakline/internal/engine"
	"ctakline/internal/kline"
	"ctakline/internal/notify"
	"ctakline/internal/persist"
	"ctakline/internal/session"
	"ctakline/internal/store"
	"ctakline/internal/util"
)

func main() {
	cfgPath := "config/kline.yaml"
	if p := os.Getenv("CTAKLINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// ConfigLoadFailure (spec.md §7): never abort startup over a
		// missing/unparseable config file. Fall back to the hard-coded
		// defaults the original's try/except used.
		log.Printf("failed to load config from %s, falling back to defaults: %v", cfgPath, err)
		cfg = config.Default()
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	fmt.Printf("kline-server starting on %s:%d...\n", cfg.Server.Host, cfg.Server.Port)

	var sqlStore *store.SQLiteStore
	openErr := util.Retry(context.Background(), 5, 500*time.Millisecond, func() error {
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		sqlStore = s
		return nil
	})
	if openErr != nil {
		log.Fatalf("failed to open sqlite store: %v", openErr)
	}
	defer sqlStore.Close()

	// cold-archive export (ArchiveStore writing sealed years to Parquet) is
	// driven by a separate periodic maintenance job, not this process; kept
	// here only so the binary that owns Storage.ArchiveDir constructs it.
	archive := store.NewArchiveStore(cfg.Storage.ArchiveDir)
	_ = archive

	periods := resolvePeriods(cfg.KLine.RecordingPeriods, logger)

	registry := session.NewRegistry()
	worker := persist.NewWorker(sqlStore, logger, persist.DefaultQueueCapacity)
	defer worker.Stop()

	genOpts := []kline.MultiGeneratorOption{
		kline.WithRecordingTick(cfg.KLine.RecordingTick),
		kline.WithIgnorePast(cfg.KLine.IgnorePast),
		kline.WithPersistenceWorker(worker),
		kline.WithMultiGenLogger(logger),
	}
	if cfg.KLine.WarmRatePerMinute > 0 {
		genOpts = append(genOpts, kline.WithWarmupRateLimit(cfg.KLine.WarmRatePerMinute))
	}
	gen := kline.NewMultiGenerator(periods, registry, sqlStore, genOpts...)

	if len(cfg.KLine.WarmSymbols) > 0 {
		logger.Info("warming bar caches", "symbols", len(cfg.KLine.WarmSymbols))
		if err := gen.WarmSymbols(context.Background(), cfg.KLine.WarmSymbols); err != nil {
			logger.Warn("symbol warm-up did not complete", "error", err)
		}
	}

	notifier := notify.NewRegistry(logger)
	eng := engine.New(gen, notifier, engine.WithLogger(logger))
	_ = eng // wired for ProcessTick; the tick feed itself is an external collaborator (spec.md §1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("kline-server ready, waiting for shutdown signal")
	<-ctx.Done()
	logger.Info("kline-server shutting down")
}

// resolvePeriods converts the configured minute counts into domain.Period
// values, logging and skipping any value PERIOD_DICT doesn't recognize
// rather than failing startup over one bad config entry.
func resolvePeriods(minutes []int, logger *slog.Logger) []domain.Period {
	periods := make([]domain.Period, 0, len(minutes))
	for _, m := range minutes {
		p, ok := domain.PeriodFromMinutes(m)
		if !ok {
			logger.Warn("ignoring unrecognized recording period", "minutes", m)
			continue
		}
		periods = append(periods, p)
	}
	return periods
}
