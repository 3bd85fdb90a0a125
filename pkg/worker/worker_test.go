package worker

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/prismlabs/prism/pkg/bus/bustest"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/ledger/ledgertest"
	"github.com/prismlabs/prism/pkg/modeladapter/modeladaptertest"
	"github.com/prismlabs/prism/pkg/objectstore/objectstoretest"
	"github.com/prismlabs/prism/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onePixelJPEG is a minimal valid 1x1 baseline JPEG, used so
// decodeDimensions has real bytes to parse without a live encoder.
const onePixelJPEGBase64 = "/9j/4AAQSkZJRgABAQEAYABgAAD/2wBDAAMCAgICAgMCAgIDAwMDBAYEBAQEBAgGBgUGCQgKCgkICQkKDA8MCgsOCwkJDRENDg8QEBEQCgwSExIQEw8QEBD/wAALCAABAAEBAREA/8QAFAABAAAAAAAAAAAAAAAAAAAACP/EABQQAQAAAAAAAAAAAAAAAAAAAAD/2gAIAQEAAD8AVN4f/9k="

func newTestWorker(t *testing.T, b *bustest.Fake, l *ledgertest.Fake, objects *objectstoretest.Fake, adapter *modeladaptertest.Fake) *Worker {
	t.Helper()
	cfg := Config{WorkerID: "worker-test", PollInterval: 10 * time.Millisecond, ProcessingTimeout: time.Second}
	return New(cfg, b, l, objects, adapter, nil, nil)
}

func seedPageImage(t *testing.T, objects *objectstoretest.Fake, key string) {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(onePixelJPEGBase64)
	require.NoError(t, err)
	require.NoError(t, objects.UploadBytes(context.Background(), key, data, "image/jpeg"))
}

func TestProcessMessageHTMLCreatesDerivedTXTUnit(t *testing.T) {
	b := bustest.New()
	l := ledgertest.New()
	objects := objectstoretest.New()
	adapter := modeladaptertest.New("Spanish", "<span data-bbox=\"0,0,10,10\" data-font=\"12px\">hola</span>")
	w := newTestWorker(t, b, l, objects, adapter)

	ctx := context.Background()
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "task-1", UserID: "user-1", Status: types.TaskPending, RequestedFormats: []types.FormatType{types.FormatHTML}}))
	require.NoError(t, l.CreatePageUnit(ctx, types.PageUnit{TaskID: "task-1", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskPending}))

	seedPageImage(t, objects, "pages/task-1/1.jpg")

	msg := types.QueueMessage{TaskID: "task-1", UserID: "user-1", PageNumber: 1, TotalPages: 1, FormatType: types.FormatHTML, PageImageKey: "pages/task-1/1.jpg"}
	require.NoError(t, w.processMessage(ctx, msg))

	htmlUnit, err := l.GetPageUnit(ctx, "task-1", 1, types.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, htmlUnit.Status)
	assert.NotEmpty(t, htmlUnit.ResultKey)

	txtUnit, err := l.GetPageUnit(ctx, "task-1", 1, types.FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, txtUnit.Status)
	assert.NotEmpty(t, txtUnit.ResultKey)

	task, err := l.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, htmlUnit.ResultKey, task.PrimaryResultKey)

	require.Len(t, b.TaskUpdates, 2, "a processing transition and the final completed transition are each published")
	assert.Equal(t, "processing", b.TaskUpdates[0].Status)
	assert.Equal(t, "completed", b.TaskUpdates[1].Status)
}

func TestProcessMessageSkipsAlreadyCompletedUnit(t *testing.T) {
	b := bustest.New()
	l := ledgertest.New()
	objects := objectstoretest.New()
	adapter := modeladaptertest.New()
	w := newTestWorker(t, b, l, objects, adapter)

	ctx := context.Background()
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "task-2", UserID: "user-1", Status: types.TaskCompleted}))
	require.NoError(t, l.CreatePageUnit(ctx, types.PageUnit{TaskID: "task-2", PageNumber: 1, Format: types.FormatJSON, Status: types.TaskCompleted, ResultKey: "results/already-there.json"}))

	msg := types.QueueMessage{TaskID: "task-2", UserID: "user-1", PageNumber: 1, TotalPages: 1, FormatType: types.FormatJSON, PageImageKey: "pages/task-2/1.jpg"}
	require.NoError(t, w.processMessage(ctx, msg))

	assert.Empty(t, adapter.Calls, "an already-completed unit must never re-invoke the model adapter")

	unit, err := l.GetPageUnit(ctx, "task-2", 1, types.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "results/already-there.json", unit.ResultKey, "the original result key is left untouched")
}

func TestProcessMessageMarksUnitFailedOnAdapterError(t *testing.T) {
	b := bustest.New()
	l := ledgertest.New()
	objects := objectstoretest.New()
	adapter := &modeladaptertest.Fake{Err: assert.AnError}
	w := newTestWorker(t, b, l, objects, adapter)

	ctx := context.Background()
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "task-3", UserID: "user-1", Status: types.TaskPending}))
	require.NoError(t, l.CreatePageUnit(ctx, types.PageUnit{TaskID: "task-3", PageNumber: 1, Format: types.FormatJSON, Status: types.TaskPending}))

	seedPageImage(t, objects, "pages/task-3/1.jpg")

	msg := types.QueueMessage{TaskID: "task-3", UserID: "user-1", PageNumber: 1, TotalPages: 1, FormatType: types.FormatJSON, PageImageKey: "pages/task-3/1.jpg"}
	require.NoError(t, w.processMessage(ctx, msg))

	unit, err := l.GetPageUnit(ctx, "task-3", 1, types.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, unit.Status)
	assert.NotEmpty(t, unit.ErrorMessage)

	task, err := l.GetTask(ctx, "task-3")
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, task.Status)
}

func TestProcessMessageAnonProducesMappingAndAuditKeys(t *testing.T) {
	b := bustest.New()
	l := ledgertest.New()
	objects := objectstoretest.New()
	adapter := modeladaptertest.New(`{"items":[{"key":"Customer Name","value":"Jane Doe"}],"tables":[]}`)
	w := newTestWorker(t, b, l, objects, adapter)

	ctx := context.Background()
	require.NoError(t, l.CreateTask(ctx, types.Task{TaskID: "task-4", UserID: "user-1", Status: types.TaskPending}))
	require.NoError(t, l.CreatePageUnit(ctx, types.PageUnit{TaskID: "task-4", PageNumber: 1, Format: types.FormatAnon, Status: types.TaskPending}))

	seedPageImage(t, objects, "pages/task-4/1.jpg")

	msg := types.QueueMessage{
		TaskID: "task-4", UserID: "user-1", PageNumber: 1, TotalPages: 1,
		FormatType: types.FormatAnon, PageImageKey: "pages/task-4/1.jpg",
		AnonStrategy: types.AnonStrategyRedact, AnonGenerateAudit: true,
	}
	require.NoError(t, w.processMessage(ctx, msg))

	unit, err := l.GetPageUnit(ctx, "task-4", 1, types.FormatAnon)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, unit.Status)
	assert.NotEmpty(t, unit.AnonJSONKey)
	assert.NotEmpty(t, unit.AnonTXTKey)
	assert.NotEmpty(t, unit.AnonMappingKey)
	assert.NotEmpty(t, unit.AnonAuditKey)

	exists, err := objects.Exists(ctx, unit.AnonMappingKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetPageUnitReturnsNotFoundForUnknownUnit(t *testing.T) {
	l := ledgertest.New()
	_, err := l.GetPageUnit(context.Background(), "missing-task", 1, types.FormatJSON)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSideSuffixMatchesPageprocSideOrder(t *testing.T) {
	assert.Equal(t, "normalized", sideSuffix(types.FormatKVP, 0))
	assert.Equal(t, "selected", sideSuffix(types.FormatKVP, 1))
	assert.Equal(t, "tokens", sideSuffix(types.FormatAnon, 0))
	assert.Equal(t, "mapping", sideSuffix(types.FormatAnon, 1))
	assert.Equal(t, "audit", sideSuffix(types.FormatAnon, 2))
}

func TestDecodeDimensionsReadsJPEGHeader(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(onePixelJPEGBase64)
	require.NoError(t, err)

	dims, err := decodeDimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 1, dims.WidthPx)
	assert.Equal(t, 1, dims.HeightPx)
}
