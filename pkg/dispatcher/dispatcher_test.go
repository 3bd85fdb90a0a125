package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/bus/bustest"
	"github.com/prismlabs/prism/pkg/ledger/ledgertest"
	"github.com/prismlabs/prism/pkg/types"
)

func newTestDispatcher() (*Dispatcher, *ledgertest.Fake, *bustest.Fake) {
	l := ledgertest.New()
	b := bustest.New()
	return New(l, b), l, b
}

func TestSubmitCreatesTaskAndPageUnitsAndEnqueuesAscending(t *testing.T) {
	d, l, b := newTestDispatcher()
	ctx := context.Background()

	taskID, err := d.Submit(ctx, SubmitRequest{
		UserID:           "user-1",
		SourceFileKey:    "uploads/user-1/doc.pdf",
		RequestedFormats: []types.FormatType{types.FormatHTML},
		TotalPages:       3,
		PageImageKeys:    []string{"page/1", "page/2", "page/3"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	task, err := l.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskPending, task.Status)
	assert.Equal(t, 3, task.TotalPages)

	wantKeys := []string{"page/1", "page/2", "page/3"}
	for page := 1; page <= 3; page++ {
		unit, err := l.GetPageUnit(ctx, taskID, page, types.FormatHTML)
		require.NoError(t, err)
		assert.Equal(t, types.TaskPending, unit.Status)
		assert.Equal(t, wantKeys[page-1], unit.PageImageKey)
	}

	var pages []int
	for {
		msg, err := b.Dequeue(ctx, 0)
		require.NoError(t, err)
		if msg == nil {
			break
		}
		pages = append(pages, msg.PageNumber)
	}
	assert.Equal(t, []int{1, 2, 3}, pages, "pages must enqueue in ascending order within a format")
}

func TestSubmitDispatchesEveryRequestedFormat(t *testing.T) {
	d, l, _ := newTestDispatcher()
	ctx := context.Background()

	taskID, err := d.Submit(ctx, SubmitRequest{
		UserID:           "user-1",
		RequestedFormats: []types.FormatType{types.FormatHTML, types.FormatJSON},
		TotalPages:       2,
		PageImageKeys:    []string{"page/1", "page/2"},
	})
	require.NoError(t, err)

	_, err = l.GetPageUnit(ctx, taskID, 1, types.FormatHTML)
	assert.NoError(t, err)
	_, err = l.GetPageUnit(ctx, taskID, 2, types.FormatHTML)
	assert.NoError(t, err)
	_, err = l.GetPageUnit(ctx, taskID, 1, types.FormatJSON)
	assert.NoError(t, err)
	_, err = l.GetPageUnit(ctx, taskID, 2, types.FormatJSON)
	assert.NoError(t, err)
}

func TestSubmitSkipsAlreadyTerminalUnitsOnResubmission(t *testing.T) {
	d, l, b := newTestDispatcher()
	ctx := context.Background()

	req := SubmitRequest{
		TaskID:           "retry-task",
		UserID:           "user-1",
		RequestedFormats: []types.FormatType{types.FormatHTML},
		TotalPages:       2,
		PageImageKeys:    []string{"page/1", "page/2"},
	}

	_, err := d.Submit(ctx, req)
	require.NoError(t, err)

	// Drain the queue and mark page 1 completed out of band, as a
	// Worker would, before the caller retries the same submission.
	_, err = b.Dequeue(ctx, 0)
	require.NoError(t, err)
	_, err = b.Dequeue(ctx, 0)
	require.NoError(t, err)

	unit, err := l.GetPageUnit(ctx, "retry-task", 1, types.FormatHTML)
	require.NoError(t, err)
	unit.Status = types.TaskCompleted
	require.NoError(t, l.UpsertPageUnit(ctx, *unit))

	taskID, err := d.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "retry-task", taskID)

	msg, err := b.Dequeue(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, msg, "page 2 must be re-enqueued since it never completed")
	assert.Equal(t, 2, msg.PageNumber)

	msg, err = b.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, msg, "page 1 must not be re-enqueued since it already completed")
}

func TestSubmitRejectsMismatchedPageImageKeyCount(t *testing.T) {
	d, _, _ := newTestDispatcher()

	_, err := d.Submit(context.Background(), SubmitRequest{
		RequestedFormats: []types.FormatType{types.FormatHTML},
		TotalPages:       2,
		PageImageKeys:    []string{"page/1"},
	})
	assert.Error(t, err)
}

func TestSubmitCarriesFormatOptionsIntoQueueMessages(t *testing.T) {
	d, _, b := newTestDispatcher()
	ctx := context.Background()

	_, err := d.Submit(ctx, SubmitRequest{
		UserID:           "user-1",
		RequestedFormats: []types.FormatType{types.FormatKVP, types.FormatAnon},
		TotalPages:       1,
		PageImageKeys:    []string{"page/1"},
		FormatOptions: types.FormatOptions{
			KVP: &types.KVPOptions{
				SelectedFields: []types.SelectedKVP{{KeyName: "invoice_number"}},
			},
			Anon: &types.AnonOptions{
				Strategy:      types.AnonStrategyRedact,
				GenerateAudit: true,
			},
		},
	})
	require.NoError(t, err)

	byFormat := map[types.FormatType]types.QueueMessage{}
	for i := 0; i < 2; i++ {
		msg, err := b.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, msg)
		byFormat[msg.FormatType] = *msg
	}

	require.Len(t, byFormat[types.FormatKVP].SelectedKVPs, 1)
	assert.Equal(t, "invoice_number", byFormat[types.FormatKVP].SelectedKVPs[0].KeyName)

	assert.Equal(t, types.AnonStrategyRedact, byFormat[types.FormatAnon].AnonStrategy)
	assert.True(t, byFormat[types.FormatAnon].AnonGenerateAudit)
}
