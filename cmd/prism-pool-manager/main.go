// Command prism-pool-manager supervises a host's prism-worker
// processes: it derives the worker count from available VRAM, forks
// and restarts them, and optionally participates in Raft leader
// election across replicas supervising the same host group, grounded
// on the teacher's cmd/warren "manager join"/"cluster init"
// subcommands' bring-up-then-wait-for-signal shape, adapted to
// spec.md §6's env-only "worker pool binary takes no arguments"
// contract.
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
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/poolmgr"
	"github.com/prismlabs/prism/pkg/poolmgr/election"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	logger := log.WithComponent("poolmgr")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := bus.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to bus failed")
	}
	defer b.Close()
	metrics.RegisterComponent("bus", true, "connected")
	metrics.SetCriticalComponents("bus")

	peers, err := cfg.RaftPeerList()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing RAFT_PEERS failed")
	}
	electorPeers := make([]election.Peer, 0, len(peers)+1)
	if len(peers) > 0 {
		electorPeers = append(electorPeers, election.Peer{NodeID: cfg.NodeID, Addr: cfg.RaftBindAddr})
		for _, p := range peers {
			electorPeers = append(electorPeers, election.Peer{NodeID: p.NodeID, Addr: p.Addr})
		}
	}

	elector, err := election.New(election.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.RaftBindAddr,
		DataDir:  cfg.RaftDataDir,
		Peers:    electorPeers,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("forming raft election group failed")
	}
	defer elector.Close()

	metrics.RaftPeersTotal.Set(float64(elector.PeerCount()))
	metrics.RaftIsLeader.Set(boolToFloat(elector.IsLeader()))

	mgr := poolmgr.New(poolmgr.Config{
		WorkerBinaryPath: cfg.WorkerBinaryPath,
		VRAMGigabytes:    cfg.VRAMGigabytes,
		WorkerEnv:        workerEnv(cfg),
		ReadyWaitTimeout: cfg.WorkerReadyWait,
		MonitorInterval:  cfg.MonitorInterval,
		ShutdownGrace:    cfg.ShutdownGrace,
	}, b, elector)

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("starting worker pool failed")
	}
	logger.Info().Int("peers", elector.PeerCount()).Bool("leader", elector.IsLeader()).Msg("pool manager started")

	go serveMetrics(cfg.MetricsAddr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	mgr.Stop()
	logger.Info().Msg("shutdown complete")
}

// workerEnv carries the shared bus/ledger/store settings down to each
// spawned prism-worker process's environment, since the pool manager
// itself never touches the ledger or object store.
func workerEnv(cfg config.Config) []string {
	return []string{
		"REDIS_HOST=" + cfg.RedisHost,
		fmt.Sprintf("REDIS_PORT=%d", cfg.RedisPort),
		"DB_HOST=" + cfg.DBHost,
		fmt.Sprintf("DB_PORT=%d", cfg.DBPort),
		"DB_NAME=" + cfg.DBName,
		"DB_USER=" + cfg.DBUser,
		"DB_PASSWORD=" + cfg.DBPassword,
		"S3_BUCKET=" + cfg.S3Bucket,
		"S3_REGION=" + cfg.S3Region,
		"S3_ENDPOINT_URL=" + cfg.S3EndpointURL,
		"MODEL_PATH=" + cfg.ModelPath,
		"MODEL_NAME=" + cfg.ModelName,
		"MODEL_HEALTH_URL=" + cfg.ModelHealthURL,
		"KVP_DICT_PATH=" + cfg.KVPDictPath,
		"OUTPUT_DIR=" + cfg.OutputDir,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
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
