// poolrunner is the pool trading daemon: it loads the account directory,
// schedules a trading pass per configured interval and serves prometheus
// metrics until terminated.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/backfarm/poolbot/internal/directory"
	"github.com/backfarm/poolbot/internal/metrics"
	"github.com/backfarm/poolbot/internal/strategy"
	"github.com/backfarm/poolbot/pkg/config"
	"github.com/backfarm/poolbot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	// .env is optional; deployments may rely on real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.WithError(err).Fatal("initializing logger")
	}

	defaults, err := settingsDefaults(cfg.Strategy)
	if err != nil {
		log.WithError(err).Fatal("invalid strategy defaults")
	}

	store, err := directory.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).WithField("db", cfg.DatabaseDSN).Fatal("opening directory")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	factory := strategy.NewDirectoryFactory(store, strategy.FactoryConfig{
		BaseURL: cfg.Exchange.BaseURL,
		Window:  cfg.Exchange.Window,
	})
	runner := strategy.NewRunner(store, factory, defaults, nil)

	if *once {
		runner.RunAll(ctx)
		return
	}

	// Each pool runs on its own cadence. The pool set and intervals are read
	// once at startup; restart to pick up directory changes.
	pools, err := store.ActivePools(ctx)
	if err != nil {
		log.WithError(err).Fatal("loading pools")
	}

	scheduler := cron.New()
	for _, entry := range poolSchedule(pools, defaults) {
		entry := entry
		_, err := scheduler.AddFunc("@every "+entry.interval.String(), func() {
			passCtx, cancel := context.WithTimeout(ctx, entry.interval)
			defer cancel()
			runner.RunPool(passCtx, entry.pool)
		})
		if err != nil {
			log.WithError(err).WithField("pool", entry.pool.Name).Fatal("scheduling pool passes")
		}
		log.WithField("pool", entry.pool.Name).
			WithField("interval", entry.interval).Info("pool scheduled")
	}

	log.WithField("pools", len(pools)).Info("poolrunner started")
	scheduler.Start()

	// First pass immediately; cron fires the rest.
	runner.RunAll(ctx)

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("pass still running at shutdown deadline, exiting anyway")
	}
	os.Exit(0)
}

type scheduleEntry struct {
	pool     directory.Pool
	interval time.Duration
}

// poolSchedule resolves each pool's tick interval from its settings overlay.
// Pools with a broken settings blob are dropped here; RunPool would refuse
// them anyway.
func poolSchedule(pools []directory.Pool, defaults strategy.Settings) []scheduleEntry {
	out := make([]scheduleEntry, 0, len(pools))
	for _, pool := range pools {
		settings, err := strategy.ParseSettings(pool.Settings, defaults)
		if err != nil {
			log.WithError(err).WithField("pool", pool.Name).Error("invalid pool settings, not scheduling")
			continue
		}
		out = append(out, scheduleEntry{pool: pool, interval: settings.Interval})
	}
	return out
}

// settingsDefaults overlays the config file's strategy section onto the
// built-in defaults, reusing the pool blob parser.
func settingsDefaults(sc config.StrategyConfig) (strategy.Settings, error) {
	blob, err := json.Marshal(sc)
	if err != nil {
		return strategy.Settings{}, err
	}
	return strategy.ParseSettings(blob, strategy.DefaultSettings())
}
