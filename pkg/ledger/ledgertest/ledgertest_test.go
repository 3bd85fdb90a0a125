package ledgertest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/ledger/ledgertest"
	"github.com/prismlabs/prism/pkg/types"
)

func TestRecomputeTaskStatusCompletedWhenAllUnitsTerminal(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()

	task := types.Task{TaskID: "t1", UserID: "u1", TotalPages: 1, Status: types.TaskPending,
		RequestedFormats: []types.FormatType{types.FormatHTML}}
	require.NoError(t, store.CreateTask(ctx, task))

	require.NoError(t, store.CreatePageUnit(ctx, types.PageUnit{TaskID: "t1", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskPending}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t1", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskCompleted, ResultKey: "results/t1/page_1_html.html"}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t1", PageNumber: 1, Format: types.FormatTXT, Status: types.TaskCompleted, ResultKey: "results/t1/page_1_txt.txt"}))

	require.NoError(t, store.RecomputeTaskStatus(ctx, "t1"))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, got.Status)
}

func TestRecomputeTaskStatusFailedWhenNoUnitCompleted(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()

	require.NoError(t, store.CreateTask(ctx, types.Task{TaskID: "t2", Status: types.TaskPending}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t2", PageNumber: 1, Format: types.FormatKVP, Status: types.TaskFailed, ErrorMessage: "unknown format"}))

	require.NoError(t, store.RecomputeTaskStatus(ctx, "t2"))

	got, err := store.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.Status)
}

func TestRecomputeTaskStatusCompletedWhenMixedWithFailedUnit(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()

	require.NoError(t, store.CreateTask(ctx, types.Task{TaskID: "t2b", Status: types.TaskPending}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t2b", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskCompleted, ResultKey: "results/t2b/page_1_html.html"}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t2b", PageNumber: 2, Format: types.FormatHTML, Status: types.TaskCompleted, ResultKey: "results/t2b/page_2_html.html"}))
	require.NoError(t, store.UpsertPageUnit(ctx, types.PageUnit{TaskID: "t2b", PageNumber: 3, Format: types.FormatKVP, Status: types.TaskFailed, ErrorMessage: "unknown format"}))

	require.NoError(t, store.RecomputeTaskStatus(ctx, "t2b"))

	got, err := store.GetTask(ctx, "t2b")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, got.Status, "a task with at least one completed unit must be completed even if other units failed")
}

func TestCreatePageUnitSkipsExistingTerminalRow(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()

	unit := types.PageUnit{TaskID: "t3", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskCompleted, ResultKey: "original"}
	require.NoError(t, store.CreatePageUnit(ctx, unit))

	// A resubmitted task re-creating the same unit must not clobber it.
	require.NoError(t, store.CreatePageUnit(ctx, types.PageUnit{TaskID: "t3", PageNumber: 1, Format: types.FormatHTML, Status: types.TaskPending}))

	got, err := store.GetPageUnit(ctx, "t3", 1, types.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, got.Status)
	assert.Equal(t, "original", got.ResultKey)
}

func TestGetTaskNotFound(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()

	_, err := store.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
