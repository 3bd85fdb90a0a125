package poolmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerCountClampsToRange(t *testing.T) {
	assert.Equal(t, 1, WorkerCount(0))
	assert.Equal(t, 1, WorkerCount(-5))
	assert.Equal(t, 1, WorkerCount(24))
	assert.Equal(t, 1, WorkerCount(28))
	assert.Equal(t, 2, WorkerCount(80))
	assert.Equal(t, 4, WorkerCount(1000), "worker count must never exceed the 4-worker safety clamp")
}

func TestWorkerIDFormat(t *testing.T) {
	assert.Equal(t, "worker-001", workerID(0))
	assert.Equal(t, "worker-002", workerID(1))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateExited.Terminal())
	assert.True(t, StateCrashed.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateReady.Terminal())
}
