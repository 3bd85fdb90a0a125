package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_HOST", "REDIS_PORT", "DB_HOST", "DB_PORT", "DB_NAME",
		"S3_BUCKET", "WORKER_ID", "MAX_ATTEMPTS", "PROCESSING_TIMEOUT",
		"VRAM_GB", "SHUTDOWN_GRACE", "MONITOR_INTERVAL", "RAFT_PEERS",
		"NODE_ID", "METRICS_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, "prism_dev", cfg.DBName)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "pool-manager-1", cfg.NodeID)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.Empty(t, cfg.RaftPeers)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("MAX_ATTEMPTS", "7")
	t.Setenv("VRAM_GB", "40.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal", cfg.RedisHost)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 40.5, cfg.VRAMGigabytes)
}

func TestLoadRejectsMalformedIntEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_ATTEMPTS", "not-a-number")

	_, err := config.Load()
	require.Error(t, err)
}

func TestDatabaseURLFormatsConnectionString(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "prism")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.DatabaseURL(), "db.internal:6543/prism")
}

func TestRaftPeerListEmptyWhenUnset(t *testing.T) {
	cfg := config.Config{}
	peers, err := cfg.RaftPeerList()
	require.NoError(t, err)
	assert.Nil(t, peers)
}

func TestRaftPeerListParsesMultipleEntries(t *testing.T) {
	cfg := config.Config{RaftPeers: "node-a@10.0.0.1:7950, node-b@10.0.0.2:7950"}

	peers, err := cfg.RaftPeerList()
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, config.RaftPeer{NodeID: "node-a", Addr: "10.0.0.1:7950"}, peers[0])
	assert.Equal(t, config.RaftPeer{NodeID: "node-b", Addr: "10.0.0.2:7950"}, peers[1])
}

func TestRaftPeerListRejectsMalformedEntry(t *testing.T) {
	cfg := config.Config{RaftPeers: "node-a-without-address"}

	_, err := cfg.RaftPeerList()
	require.Error(t, err)
}

func TestRaftPeerListSkipsBlankEntries(t *testing.T) {
	cfg := config.Config{RaftPeers: "node-a@10.0.0.1:7950,,  "}

	peers, err := cfg.RaftPeerList()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "node-a", peers[0].NodeID)
}
