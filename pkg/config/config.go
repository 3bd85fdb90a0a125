// Package config loads prism's environment-backed configuration into a
// single typed struct, following original_source/worker/config.py's
// Config class field-for-field but translated into idiomatic Go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting shared across the
// prism-dispatcher, prism-worker, and prism-pool-manager binaries.
// Not every binary reads every field; unused fields are simply
// ignored by a given process.
type Config struct {
	// Redis / bus
	RedisHost        string
	RedisPort        int
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSCACert   string
	RedisTLSCert     string
	RedisTLSKey      string
	RedisTLSVerify   bool

	// Postgres / ledger
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Object store
	S3Bucket          string
	S3Region          string
	S3EndpointURL     string
	S3ForcePathStyle  bool

	// Worker
	WorkerID           string
	MaxAttempts        int
	ProcessingTimeout  time.Duration
	PollInterval       time.Duration
	OutputDir          string
	ModelPath          string
	ModelName          string
	ModelHealthURL     string
	GenerateTimeout    time.Duration
	KVPDictPath        string

	// Pool manager
	WorkerBinaryPath string
	VRAMGigabytes    float64
	DevMode          bool
	WorkerReadyWait  time.Duration
	ShutdownGrace    time.Duration
	MonitorInterval  time.Duration

	// Pool manager HA election. Peers is a comma-separated
	// node_id@addr list; fewer than two entries (including this node)
	// disables Raft election, per pkg/poolmgr/election's single-replica
	// behavior.
	NodeID       string
	RaftBindAddr string
	RaftDataDir  string
	RaftPeers    string

	// MetricsAddr is the bind address every long-lived binary serves
	// /metrics, /health, /ready, and /live from.
	MetricsAddr string
}

// Load reads environment variables (optionally preloaded from a local
// .env file via godotenv, ignored if absent) and returns a populated
// Config. Every field has a default suitable for local development;
// production deployments are expected to override all of them.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisDB:         0,
		RedisTLSEnabled: getBool("REDIS_TLS_ENABLED", false),
		RedisTLSCACert:  os.Getenv("REDIS_TLS_CA_CERT"),
		RedisTLSCert:    os.Getenv("REDIS_TLS_CERT"),
		RedisTLSKey:     os.Getenv("REDIS_TLS_KEY"),
		RedisTLSVerify:  getBool("REDIS_TLS_VERIFY", true),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBName:     getEnv("DB_NAME", "prism_dev"),
		DBUser:     getEnv("DB_USER", "prism_user"),
		DBPassword: getEnv("DB_PASSWORD", "prism_pass_dev"),

		S3Bucket:         getEnv("S3_BUCKET", "prism-dev"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3EndpointURL:    os.Getenv("S3_ENDPOINT_URL"),
		S3ForcePathStyle: getBool("S3_FORCE_PATH_STYLE", false),

		WorkerID:       getEnv("WORKER_ID", "worker-001"),
		OutputDir:      getEnv("OUTPUT_DIR", "./output"),
		ModelPath:      getEnv("MODEL_PATH", ""),
		ModelName:      getEnv("MODEL_NAME", "Qwen3-VL-3B"),
		ModelHealthURL: os.Getenv("MODEL_HEALTH_URL"),
		KVPDictPath:    getEnv("KVP_DICT_PATH", "./config/master_kvps.yaml"),

		DevMode: getBool("DEV_MODE", false),

		WorkerBinaryPath: getEnv("WORKER_BINARY_PATH", "./prism-worker"),
		NodeID:           getEnv("NODE_ID", "pool-manager-1"),
		RaftBindAddr:     getEnv("RAFT_BIND_ADDR", "127.0.0.1:7950"),
		RaftDataDir:      getEnv("RAFT_DATA_DIR", "./prism-poolmgr-data"),
		RaftPeers:        os.Getenv("RAFT_PEERS"),

		MetricsAddr: getEnv("METRICS_ADDR", "127.0.0.1:9090"),
	}

	var err error
	if cfg.RedisPort, err = getInt("REDIS_PORT", 6379); err != nil {
		return Config{}, err
	}
	if cfg.DBPort, err = getInt("DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = getInt("MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	processingTimeoutSec, err := getInt("PROCESSING_TIMEOUT", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.ProcessingTimeout = time.Duration(processingTimeoutSec) * time.Second

	pollIntervalSec, err := getInt("POLL_INTERVAL", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = time.Duration(pollIntervalSec) * time.Second

	generateTimeoutSec, err := getInt("GENERATE_TIMEOUT", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTimeout = time.Duration(generateTimeoutSec) * time.Second

	workerReadyWaitSec, err := getInt("WORKER_READY_WAIT", 120)
	if err != nil {
		return Config{}, err
	}
	cfg.WorkerReadyWait = time.Duration(workerReadyWaitSec) * time.Second

	if cfg.VRAMGigabytes, err = getFloat("VRAM_GB", 28); err != nil {
		return Config{}, err
	}

	shutdownGraceSec, err := getInt("SHUTDOWN_GRACE", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownGrace = time.Duration(shutdownGraceSec) * time.Second

	monitorIntervalSec, err := getInt("MONITOR_INTERVAL", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.MonitorInterval = time.Duration(monitorIntervalSec) * time.Second

	return cfg, nil
}

// RaftPeerList parses RaftPeers ("node_id@addr,node_id@addr,...") into
// election.Peer-shaped pairs. Blank entries are skipped; a malformed
// entry makes the whole call return an error rather than being
// dropped, since a bad peer spec should fail Pool Manager startup, not
// quietly disable HA.
func (c Config) RaftPeerList() ([]RaftPeer, error) {
	if c.RaftPeers == "" {
		return nil, nil
	}
	var peers []RaftPeer
	for _, entry := range strings.Split(c.RaftPeers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("parsing RAFT_PEERS entry %q: expected node_id@addr", entry)
		}
		peers = append(peers, RaftPeer{NodeID: parts[0], Addr: parts[1]})
	}
	return peers, nil
}

// RaftPeer is one node_id@addr pair parsed from RAFT_PEERS.
type RaftPeer struct {
	NodeID string
	Addr   string
}

// DatabaseURL returns the PostgreSQL connection string pgx expects,
// following original_source/worker/db_client.py's get_database_url.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}
