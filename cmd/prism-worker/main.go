// Command prism-worker is the long-lived GPU-bound process that pulls
// QueueMessage envelopes off pkg/bus, drives them through
// pkg/pageproc, and persists the resulting artifacts, grounded on the
// teacher's cmd/warren "worker start" subcommand (embedded-dependency
// bring-up, metrics/health server, signal-driven shutdown) adapted to
// spec.md §6's "worker pool binary takes no arguments" contract: every
// setting comes from the environment, never flags.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/config"
	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/modeladapter"
	"github.com/prismlabs/prism/pkg/objectstore"
	"github.com/prismlabs/prism/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	logger := log.WithWorkerID(cfg.WorkerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := bus.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to bus failed")
	}
	defer b.Close()
	metrics.RegisterComponent("bus", true, "connected")

	l, err := ledger.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to ledger failed")
	}
	defer l.Close()
	metrics.RegisterComponent("ledger", true, "connected")

	objects, err := objectstore.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to object store failed")
	}
	metrics.RegisterComponent("objectstore", true, "connected")

	// Worker init failure (spec.md error kind 5): a model the adapter
	// cannot reach is fatal at startup, never a degraded-but-running
	// process.
	adapter, err := modeladapter.Load(cfg)
	if err != nil {
		metrics.RegisterComponent("model", false, err.Error())
		logger.Fatal().Err(err).Msg("loading model adapter failed")
	}
	metrics.RegisterComponent("model", true, "ready")
	metrics.SetCriticalComponents("bus", "ledger", "objectstore", "model")

	var dict *kvpdict.MasterDict
	if cfg.KVPDictPath != "" {
		dict, err = kvpdict.Load(cfg.KVPDictPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.KVPDictPath).Msg("loading master kvp dictionary failed, kvp/anon units will run uncategorized")
			dict = nil
		}
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
	postgresAddr := fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort)
	monitor := worker.NewHealthMonitor(cfg.WorkerID, b, cfg.ModelHealthURL, redisAddr, postgresAddr)

	w := worker.New(worker.Config{
		WorkerID:          cfg.WorkerID,
		PollInterval:      cfg.PollInterval,
		ProcessingTimeout: cfg.ProcessingTimeout,
		KVPDictPath:       cfg.KVPDictPath,
	}, b, l, objects, adapter, dict, monitor)

	w.Start(ctx)
	logger.Info().Msg("worker started")

	go serveMetrics(cfg.MetricsAddr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	w.Stop()
	logger.Info().Msg("shutdown complete")
}

func initLogging(cfg config.Config) {
	level := log.InfoLevel
	if cfg.DevMode {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: !cfg.DevMode})
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
