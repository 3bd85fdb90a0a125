// Package worker implements the Worker process: a loop that pulls
// QueueMessage envelopes off the bus, runs pkg/pageproc against the
// Model Adapter, and persists the resulting artifacts, grounded on
// original_source/worker/qwen_worker.py's process_task main loop and
// the teacher's worker.go's stopCh/ticker lifecycle shape.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"math/rand"
	"sync"
	"time"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/modeladapter"
	"github.com/prismlabs/prism/pkg/objectstore"
	"github.com/prismlabs/prism/pkg/pageproc"
	"github.com/prismlabs/prism/pkg/retry"
	"github.com/prismlabs/prism/pkg/types"
)

// Config holds worker configuration.
type Config struct {
	WorkerID          string
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	KVPDictPath       string
}

// Worker pulls units from the bus and drives them through a
// pageproc.Processor to completion, grounded on the teacher's
// stopCh-based lifecycle (NewWorker/Start/Stop) generalized away from
// container execution onto page processing.
type Worker struct {
	id                string
	pollInterval      time.Duration
	processingTimeout time.Duration

	bus       bus.Bus
	ledger    ledger.Store
	objects   objectstore.ObjectStore
	processor *pageproc.Processor

	aliasMap          kvpdict.AliasMap
	totalStandardKeys int
	totalRequired     int

	healthMonitor *HealthMonitor

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Worker. dict may be nil when the deployment carries
// no master KVP dictionary: kvp units then place every field in the
// "other" category, and anon units classify fields by pkg/anonymize's
// fixed key dictionary alone.
func New(cfg Config, b bus.Bus, l ledger.Store, objects objectstore.ObjectStore, adapter modeladapter.Adapter, dict *kvpdict.MasterDict, monitor *HealthMonitor) *Worker {
	w := &Worker{
		id:                cfg.WorkerID,
		pollInterval:      cfg.PollInterval,
		processingTimeout: cfg.ProcessingTimeout,
		bus:               b,
		ledger:            l,
		objects:           objects,
		processor:         pageproc.New(adapter),
		healthMonitor:     monitor,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
	if dict != nil {
		w.aliasMap = kvpdict.BuildAliasMap(dict)
		w.totalStandardKeys = len(dict.Keys)
		w.totalRequired = len(dict.RequiredKeys())
	}
	return w
}

// Start begins the worker's dequeue loop and, if a health monitor was
// supplied, its dependency checks. It returns immediately; the loop
// runs until Stop is called.
func (w *Worker) Start(ctx context.Context) {
	if w.healthMonitor != nil {
		w.healthMonitor.Start(ctx)
	}
	go w.loop(ctx)
}

// Stop signals the dequeue loop to exit and blocks until it has, then
// stops the health monitor.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
	if w.healthMonitor != nil {
		w.healthMonitor.Stop()
	}
}

// loop is the worker's main body: blocking-dequeue, process, persist,
// repeat. A dequeue timeout (nil message, nil error) is not an error;
// it is the bus telling the worker nothing is queued right now.
func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)

	logger := log.WithWorkerID(w.id)
	logger.Info().Msg("worker loop started")

	for {
		select {
		case <-w.stopCh:
			logger.Info().Msg("worker loop stopping")
			return
		default:
		}

		msg, err := w.bus.Dequeue(ctx, w.pollInterval)
		if err != nil {
			logger.Error().Err(err).Msg("dequeue failed")
			continue
		}
		if msg == nil {
			continue
		}

		unitLogger := log.WithTaskID(msg.TaskID)
		if err := w.processMessage(ctx, *msg); err != nil {
			unitLogger.Error().Err(err).Int("page", msg.PageNumber).Str("format", string(msg.FormatType)).Msg("unit processing failed")
		}
	}
}

// processMessage handles one QueueMessage end to end: the idempotent
// re-delivery short-circuit, download, pageproc.Process, artifact
// upload, and ledger/bus updates.
func (w *Worker) processMessage(ctx context.Context, msg types.QueueMessage) error {
	logger := log.WithTaskID(msg.TaskID)

	// Re-delivery short-circuit (spec P7): a unit already terminal in
	// the ledger is never reprocessed, since re-invoking the Model
	// Adapter burns the scarcest resource (GPU time) for no benefit.
	existing, err := w.ledger.GetPageUnit(ctx, msg.TaskID, msg.PageNumber, msg.FormatType)
	if err != nil && err != ledger.ErrNotFound {
		return fmt.Errorf("checking existing page unit: %w", err)
	}
	if existing != nil && existing.Done() {
		logger.Debug().Int("page", msg.PageNumber).Str("format", string(msg.FormatType)).Msg("skipping already-completed unit")
		return nil
	}

	timer := metrics.NewTimer()
	startedAt := time.Now().UTC()
	processingUnit := types.PageUnit{
		TaskID:       msg.TaskID,
		PageNumber:   msg.PageNumber,
		Format:       msg.FormatType,
		TotalPages:   msg.TotalPages,
		Status:       types.TaskProcessing,
		WorkerID:     w.id,
		PageImageKey: msg.PageImageKey,
		StartedAt:    &startedAt,
	}
	if err := w.ledger.UpsertPageUnit(ctx, processingUnit); err != nil {
		return fmt.Errorf("marking unit processing: %w", err)
	}
	if err := w.bus.PublishTaskUpdate(ctx, types.TaskUpdate{
		TaskID: msg.TaskID,
		UserID: msg.UserID,
		Status: string(types.TaskProcessing),
	}); err != nil {
		logger.Warn().Err(err).Msg("publishing processing task update")
	}

	procCtx, cancel := context.WithTimeout(ctx, w.processingTimeout)
	defer cancel()

	result, procErr := w.runPipeline(procCtx, msg)

	unit := processingUnit
	completedAt := time.Now().UTC()
	unit.CompletedAt = &completedAt
	unit.ProcessingTimeMS = completedAt.Sub(startedAt).Milliseconds()

	timer.ObserveDurationVec(metrics.UnitProcessingDuration, string(msg.FormatType))

	if procErr != nil {
		unit.Status = types.TaskFailed
		unit.ErrorMessage = procErr.Error()
		metrics.UnitsProcessedTotal.WithLabelValues(string(msg.FormatType), string(types.TaskFailed)).Inc()
		if err := w.ledger.UpsertPageUnit(ctx, unit); err != nil {
			return fmt.Errorf("recording failed unit: %w", err)
		}
		return w.finishTask(ctx, msg.TaskID, msg.UserID)
	}

	metrics.UnitsProcessedTotal.WithLabelValues(string(msg.FormatType), string(types.TaskCompleted)).Inc()
	unit.Status = types.TaskCompleted
	unit.ResultKey = result.primaryKey
	unit.JSONResultKey = result.jsonSideKey
	unit.AnonTXTKey = result.anonTXTKey
	unit.AnonMappingKey = result.anonMappingKey
	unit.AnonAuditKey = result.anonAuditKey
	if msg.FormatType == types.FormatAnon {
		unit.AnonJSONKey = result.primaryKey
	}

	if err := w.ledger.UpsertPageUnit(ctx, unit); err != nil {
		return fmt.Errorf("recording completed unit: %w", err)
	}

	// Derived txt row (spec §4.6): a completed html unit gains a
	// sibling txt PageUnit carrying the plain-text rendition, never
	// requested directly and never dispatched through the queue.
	if msg.FormatType == types.FormatHTML && result.derivedTXTKey != "" {
		derived := types.PageUnit{
			TaskID:       msg.TaskID,
			PageNumber:   msg.PageNumber,
			Format:       types.FormatTXT,
			TotalPages:   msg.TotalPages,
			Status:       types.TaskCompleted,
			WorkerID:     w.id,
			PageImageKey: msg.PageImageKey,
			ResultKey:    result.derivedTXTKey,
			StartedAt:    &startedAt,
			CompletedAt:  &completedAt,
		}
		if err := w.ledger.UpsertPageUnit(ctx, derived); err != nil {
			return fmt.Errorf("recording derived txt unit: %w", err)
		}
	}

	if result.primaryKey != "" && (msg.FormatType == types.FormatHTML || msg.FormatType == types.FormatKVP) {
		// html always takes the preview slot; kvp only fills it while it
		// is still empty, so a later kvp unit never displaces an html key.
		setPrimary := true
		if msg.FormatType == types.FormatKVP {
			if task, err := w.ledger.GetTask(ctx, msg.TaskID); err == nil && task.PrimaryResultKey != "" {
				setPrimary = false
			}
		}
		if setPrimary {
			if err := w.ledger.SetTaskPrimaryResultKey(ctx, msg.TaskID, result.primaryKey); err != nil {
				logger.Warn().Err(err).Msg("setting task primary result key")
			}
		}
	}

	return w.finishTask(ctx, msg.TaskID, msg.UserID)
}

// finishTask recomputes the owning task's aggregate status and
// publishes the resulting update, regardless of whether this unit
// succeeded or failed.
func (w *Worker) finishTask(ctx context.Context, taskID, userID string) error {
	if err := w.ledger.RecomputeTaskStatus(ctx, taskID); err != nil {
		return fmt.Errorf("recomputing task status: %w", err)
	}

	task, err := w.ledger.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("reading task after recompute: %w", err)
	}

	update := types.TaskUpdate{
		TaskID: taskID,
		UserID: userID,
		Status: string(task.Status),
	}
	if err := w.bus.PublishTaskUpdate(ctx, update); err != nil {
		return fmt.Errorf("publishing task update: %w", err)
	}
	return nil
}

// pipelineResult collects every artifact key a completed unit may
// produce, flattened out of pageproc.PageResult for ledger storage.
type pipelineResult struct {
	primaryKey     string
	jsonSideKey    string
	anonTXTKey     string
	anonMappingKey string
	anonAuditKey   string
	derivedTXTKey  string
}

// runPipeline downloads the page image, runs pageproc.Process, and
// uploads every resulting artifact to its object-store key.
func (w *Worker) runPipeline(ctx context.Context, msg types.QueueMessage) (pipelineResult, error) {
	var result pipelineResult

	var imageJPEG []byte
	err := retry.Do(ctx, retry.DefaultConfig(), "downloading page image", func(ctx context.Context) error {
		var downloadErr error
		imageJPEG, downloadErr = w.objects.DownloadBytes(ctx, msg.PageImageKey)
		return downloadErr
	})
	if err != nil {
		return result, err
	}

	dims, err := decodeDimensions(imageJPEG)
	if err != nil {
		return result, fmt.Errorf("decoding page image dimensions: %w", err)
	}

	options := formatOptions(msg)

	in := pageproc.PageInput{
		ImageJPEG:         imageJPEG,
		Dimensions:        dims,
		Format:            msg.FormatType,
		Options:           options,
		AliasMap:          w.aliasMap,
		TotalStandardKeys: w.totalStandardKeys,
		TotalRequired:     w.totalRequired,
		RandSource:        rand.NewSource(time.Now().UnixNano()),
	}

	pageResult, err := w.processor.Process(ctx, in)
	if err != nil {
		return result, fmt.Errorf("processing page: %w", err)
	}

	now := time.Now().UTC()

	primaryKey := objectstore.ResultKey(now, msg.UserID, msg.TaskID, msg.PageNumber, msg.FormatType)
	if err := w.uploadWithRetry(ctx, "uploading primary artifact", primaryKey, pageResult.Primary.Body, pageResult.Primary.ContentType); err != nil {
		return result, err
	}
	result.primaryKey = primaryKey

	for i, side := range pageResult.Side {
		suffix := sideSuffix(msg.FormatType, i)
		var key string
		if side.Sensitive {
			key = objectstore.SensitiveResultKey(now, msg.UserID, msg.TaskID, msg.PageNumber, suffix)
		} else {
			key = objectstore.ResultSideKey(now, msg.UserID, msg.TaskID, msg.PageNumber, msg.FormatType, suffix)
		}
		if err := w.uploadWithRetry(ctx, fmt.Sprintf("uploading side artifact %d", i), key, side.Body, side.ContentType); err != nil {
			return result, err
		}
		assignSideKey(&result, msg.FormatType, i, key)
	}

	if pageResult.DerivedTXT != nil {
		derivedKey := objectstore.ResultKey(now, msg.UserID, msg.TaskID, msg.PageNumber, types.FormatTXT)
		if err := w.uploadWithRetry(ctx, "uploading derived txt artifact", derivedKey, pageResult.DerivedTXT, "text/plain"); err != nil {
			return result, err
		}
		result.derivedTXTKey = derivedKey
	}

	return result, nil
}

// uploadWithRetry wraps an UploadBytes call with bounded exponential
// backoff (spec.md §7 error kind 1: transient infra), so a momentary
// object-store hiccup does not fail a whole page unit on its own.
func (w *Worker) uploadWithRetry(ctx context.Context, op, key string, body []byte, contentType string) error {
	return retry.Do(ctx, retry.DefaultConfig(), op, func(ctx context.Context) error {
		return w.objects.UploadBytes(ctx, key, body, contentType)
	})
}

// sideSuffix names a side artifact's key suffix, matching the fixed
// per-format order pkg/pageproc's processKVP/processAnon build their
// Side slices in.
func sideSuffix(format types.FormatType, index int) string {
	switch format {
	case types.FormatKVP:
		if index == 0 {
			return "normalized"
		}
		return "selected"
	case types.FormatAnon:
		switch index {
		case 0:
			return "tokens"
		case 1:
			return "mapping"
		default:
			return "audit"
		}
	default:
		return fmt.Sprintf("side-%d", index)
	}
}

// assignSideKey routes an uploaded side artifact's key into the
// PageUnit field pkg/pageproc's per-format handlers document: kvp
// produces a normalized-json side at index 0 (and an optional
// selected-fields json at index 1, not separately tracked); anon
// produces token-txt at index 0, mapping (sensitive) at index 1, and
// an optional audit (sensitive) at index 2.
func assignSideKey(result *pipelineResult, format types.FormatType, index int, key string) {
	switch format {
	case types.FormatKVP:
		if index == 0 {
			result.jsonSideKey = key
		}
	case types.FormatAnon:
		switch index {
		case 0:
			result.anonTXTKey = key
		case 1:
			result.anonMappingKey = key
		case 2:
			result.anonAuditKey = key
		}
	}
}

// formatOptions extracts the per-format options embedded in a
// QueueMessage into the tagged union pageproc.PageInput expects.
func formatOptions(msg types.QueueMessage) types.FormatOptions {
	var opts types.FormatOptions
	if len(msg.SelectedKVPs) > 0 {
		opts.KVP = &types.KVPOptions{SelectedFields: msg.SelectedKVPs}
	}
	if msg.AnonStrategy != "" {
		opts.Anon = &types.AnonOptions{
			Strategy:       msg.AnonStrategy,
			GenerateAudit:  msg.AnonGenerateAudit,
			SelectedFields: msg.AnonSelectedFields,
		}
	}
	return opts
}

// decodeDimensions reads a JPEG's pixel dimensions without decoding
// the full image, matching the 300 DPI raster pkg/pageproc's
// coordinate math assumes. No pack library parses JPEG headers; the
// standard library's image/jpeg is the only option (DESIGN.md).
func decodeDimensions(jpegBytes []byte) (pageproc.PageDimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(jpegBytes))
	if err != nil {
		return pageproc.PageDimensions{}, err
	}
	return pageproc.PageDimensions{WidthPx: cfg.Width, HeightPx: cfg.Height}, nil
}
