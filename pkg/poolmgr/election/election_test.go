package election

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFewerThanTwoPeersIsDisabledAndAlwaysLeader(t *testing.T) {
	e, err := New(Config{NodeID: "pm-1", Peers: []Peer{{NodeID: "pm-1", Addr: "127.0.0.1:7000"}}})
	require.NoError(t, err)
	assert.True(t, e.IsLeader())
	assert.Equal(t, 1, e.PeerCount())
	assert.NoError(t, e.Close())
}

func TestNewWithNoPeersIsDisabled(t *testing.T) {
	e, err := New(Config{NodeID: "pm-1"})
	require.NoError(t, err)
	assert.True(t, e.IsLeader())
}
