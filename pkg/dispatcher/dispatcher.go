// Package dispatcher turns a Task submission into ledger rows and
// queue messages: grounded on spec.md §4.1 and
// original_source/worker/db_client.py's create_task_with_pages upsert
// shape, translated onto pkg/ledger and pkg/bus behind the teacher's
// narrow-interface-plus-fake dependency style.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/types"
)

// SubmitRequest describes one Task submission. PageImageKeys must have
// exactly TotalPages entries, index i holding the object-store key of
// page i+1's rasterized image (spec.md §4.1's "a page-rasterized image
// already uploaded for every page" precondition).
//
// TaskID is normally left empty so Dispatcher allocates one; a caller
// retrying a submission it already assigned an ID to may set it, which
// is what makes the per-PageUnit idempotency guarantee observable.
type SubmitRequest struct {
	TaskID           string
	UserID           string
	SourceFileKey    string
	RequestedFormats []types.FormatType
	FormatOptions    types.FormatOptions
	TotalPages       int
	PageImageKeys    []string
}

// Dispatcher allocates tasks and their PageUnit rows, then enqueues
// the corresponding QueueMessages.
type Dispatcher struct {
	ledger ledger.Store
	bus    bus.Bus
}

// New returns a Dispatcher backed by the given ledger and bus.
func New(l ledger.Store, b bus.Bus) *Dispatcher {
	return &Dispatcher{ledger: l, bus: b}
}

// Submit implements spec.md §4.1: allocate task_id, write the task row,
// then for every (page, format) pair insert a PageUnit row and enqueue
// its QueueMessage, pages ascending within a format. Rows are always
// inserted before their message is enqueued, so the only possible
// partial-failure state is a row with nothing enqueued yet (safe to
// retry by resubmitting with the same TaskID).
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if len(req.PageImageKeys) != req.TotalPages {
		return "", fmt.Errorf("dispatcher: got %d page image keys for %d pages", len(req.PageImageKeys), req.TotalPages)
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DispatchLatency)

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	logger := log.WithTaskID(taskID)

	task := types.Task{
		TaskID:           taskID,
		UserID:           req.UserID,
		SourceFileKey:    req.SourceFileKey,
		RequestedFormats: req.RequestedFormats,
		FormatOptions:    req.FormatOptions,
		TotalPages:       req.TotalPages,
		Status:           types.TaskPending,
	}
	if err := d.ledger.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("creating task %s: %w", taskID, err)
	}

	for _, format := range req.RequestedFormats {
		msgs, err := d.dispatchFormat(ctx, req, taskID, format)
		if err != nil {
			return "", fmt.Errorf("dispatching format %s for task %s: %w", format, taskID, err)
		}
		if len(msgs) == 0 {
			continue
		}
		if err := d.bus.EnqueueBatch(ctx, msgs); err != nil {
			return "", fmt.Errorf("enqueuing format %s for task %s: %w", format, taskID, err)
		}
	}

	logger.Info().Int("total_pages", req.TotalPages).Int("formats", len(req.RequestedFormats)).Msg("task dispatched")
	return taskID, nil
}

// dispatchFormat inserts the PageUnit row for every page of one
// requested format, ascending, and returns the QueueMessages for pages
// whose row is not already terminal. Skipped (already-terminal) pages
// are the idempotency guarantee in action: a resubmission of a
// partially-completed task does not re-enqueue finished work.
func (d *Dispatcher) dispatchFormat(ctx context.Context, req SubmitRequest, taskID string, format types.FormatType) ([]types.QueueMessage, error) {
	msgs := make([]types.QueueMessage, 0, req.TotalPages)

	for page := 1; page <= req.TotalPages; page++ {
		existing, err := d.ledger.GetPageUnit(ctx, taskID, page, format)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("checking existing unit for page %d: %w", page, err)
		}
		if existing != nil && existing.Status.Terminal() {
			continue
		}

		pageImageKey := req.PageImageKeys[page-1]
		unit := types.PageUnit{
			TaskID:       taskID,
			PageNumber:   page,
			Format:       format,
			TotalPages:   req.TotalPages,
			Status:       types.TaskPending,
			PageImageKey: pageImageKey,
		}
		if err := d.ledger.CreatePageUnit(ctx, unit); err != nil {
			return nil, fmt.Errorf("creating unit for page %d: %w", page, err)
		}

		msg := types.QueueMessage{
			TaskID:       taskID,
			UserID:       req.UserID,
			PageNumber:   page,
			TotalPages:   req.TotalPages,
			FormatType:   format,
			PageImageKey: pageImageKey,
		}
		switch format {
		case types.FormatKVP:
			if req.FormatOptions.KVP != nil {
				msg.SelectedKVPs = req.FormatOptions.KVP.SelectedFields
			}
		case types.FormatAnon:
			if req.FormatOptions.Anon != nil {
				msg.AnonStrategy = req.FormatOptions.Anon.Strategy
				msg.AnonGenerateAudit = req.FormatOptions.Anon.GenerateAudit
				msg.AnonSelectedFields = req.FormatOptions.Anon.SelectedFields
			}
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}
