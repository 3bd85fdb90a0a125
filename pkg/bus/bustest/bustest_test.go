package bustest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/bus/bustest"
	"github.com/prismlabs/prism/pkg/types"
)

func TestFakeQueueFIFO(t *testing.T) {
	ctx := context.Background()
	f := bustest.New()

	require.NoError(t, f.Enqueue(ctx, types.QueueMessage{TaskID: "t1", PageNumber: 1}))
	require.NoError(t, f.Enqueue(ctx, types.QueueMessage{TaskID: "t1", PageNumber: 2}))

	n, err := f.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	first, err := f.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.PageNumber)

	second, err := f.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, second.PageNumber)

	empty, err := f.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestFakeEnqueueBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	f := bustest.New()

	require.NoError(t, f.EnqueueBatch(ctx, []types.QueueMessage{
		{TaskID: "t1", PageNumber: 1},
		{TaskID: "t1", PageNumber: 2},
		{TaskID: "t1", PageNumber: 3},
	}))

	for _, want := range []int{1, 2, 3} {
		msg, err := f.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, want, msg.PageNumber)
	}
}

func TestFakeTaskMetadataMerges(t *testing.T) {
	ctx := context.Background()
	f := bustest.New()

	require.NoError(t, f.SetTaskMetadata(ctx, "t1", map[string]string{"status": "pending"}))
	require.NoError(t, f.SetTaskMetadata(ctx, "t1", map[string]string{"worker_id": "worker-1"}))

	meta, err := f.GetTaskMetadata(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "pending", meta["status"])
	assert.Equal(t, "worker-1", meta["worker_id"])
}

func TestFakeWorkerReadyAndCensus(t *testing.T) {
	ctx := context.Background()
	f := bustest.New()

	ready, err := f.WorkerReady(ctx, "worker-1")
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, f.SetWorkerReady(ctx, "worker-1"))
	ready, err = f.WorkerReady(ctx, "worker-1")
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, f.SetWorkersCount(ctx, 3))
	n, err := f.WorkersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFakePublishRecordsNotifications(t *testing.T) {
	ctx := context.Background()
	f := bustest.New()

	require.NoError(t, f.PublishTaskUpdate(ctx, types.TaskUpdate{TaskID: "t1", Status: "completed"}))
	require.NoError(t, f.PublishUserNotification(ctx, "user-1", map[string]string{"hello": "world"}))

	require.Len(t, f.TaskUpdates, 1)
	assert.Equal(t, "completed", f.TaskUpdates[0].Status)

	require.Len(t, f.UserNotifications, 1)
	assert.Equal(t, "user-1", f.UserNotifications[0].UserID)
}
