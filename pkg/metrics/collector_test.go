package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/bus/bustest"
	"github.com/prismlabs/prism/pkg/ledger/ledgertest"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/types"
)

func TestCollectorScrapesQueueAndWorkerGauges(t *testing.T) {
	ctx := context.Background()
	b := bustest.New()
	require.NoError(t, b.Enqueue(ctx, types.QueueMessage{TaskID: "t1"}))
	require.NoError(t, b.SetWorkersCount(ctx, 2))

	l := ledgertest.New()
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "t1", Status: types.TaskCompleted}))
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "t2", Status: types.TaskPending}))

	c := metrics.NewCollector(b, l)
	c.Start(ctx)
	c.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.QueueDepth))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.WorkersConfigured))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksByStatus.WithLabelValues(string(types.TaskCompleted))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksByStatus.WithLabelValues(string(types.TaskPending))))
}

func TestCollectorToleratesNilLedger(t *testing.T) {
	ctx := context.Background()
	b := bustest.New()

	c := metrics.NewCollector(b, nil)
	c.Start(ctx)
	c.Stop()
}
