// Package ledger is the PostgreSQL-backed metadata store for Task and
// PageUnit rows, grounded on original_source/worker/db_client.py's
// query shapes and the teacher's storage.Store-behind-an-interface
// pattern (the raft FSM depends on an interface, never a concrete
// struct, so tests can substitute a fake).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prismlabs/prism/pkg/types"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("ledger: not found")

// Store is the narrow interface pkg/dispatcher and pkg/worker depend
// on. A production *PostgresStore and a test fake (pkg/ledger/ledgertest)
// both implement it.
type Store interface {
	CreateTask(ctx context.Context, task types.Task) error
	GetTask(ctx context.Context, taskID string) (*types.Task, error)
	SetTaskPrimaryResultKey(ctx context.Context, taskID, resultKey string) error
	RecomputeTaskStatus(ctx context.Context, taskID string) error

	CreatePageUnit(ctx context.Context, unit types.PageUnit) error
	GetPageUnit(ctx context.Context, taskID string, pageNumber int, format types.FormatType) (*types.PageUnit, error)
	UpsertPageUnit(ctx context.Context, unit types.PageUnit) error

	ListPageUnits(ctx context.Context, taskID string) ([]types.PageUnit, error)

	CountTasksByStatus(ctx context.Context) (map[types.TaskStatus]int64, error)

	Close()
}

// PostgresStore is the production Store, backed by a pgx connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres using the given connection string and
// verifies connectivity with a Ping.
func Open(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateTask inserts a new task row in pending status. Idempotent on
// task_id: if the row already exists, the insert is skipped (spec.md
// §4.1's "inserts are idempotent on (task_id, page, format)" guarantee
// extended to the task row itself).
func (s *PostgresStore) CreateTask(ctx context.Context, task types.Task) error {
	formatOptions, err := marshalFormatOptions(task.FormatOptions)
	if err != nil {
		return fmt.Errorf("marshaling format options for task %s: %w", task.TaskID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (
			task_id, user_id, source_file_key, requested_formats, format_options,
			total_pages, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (task_id) DO NOTHING
	`, task.TaskID, task.UserID, task.SourceFileKey, formatStrings(task.RequestedFormats),
		formatOptions, task.TotalPages, task.Status)
	if err != nil {
		return fmt.Errorf("creating task %s: %w", task.TaskID, err)
	}
	return nil
}

// GetTask fetches a task row by ID.
func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, user_id, source_file_key, requested_formats, format_options,
		       total_pages, status, primary_result_key, created_at, started_at, completed_at
		FROM tasks WHERE task_id = $1
	`, taskID)

	var (
		task          types.Task
		formats       []string
		formatOptions []byte
	)
	err := row.Scan(&task.TaskID, &task.UserID, &task.SourceFileKey, &formats, &formatOptions,
		&task.TotalPages, &task.Status, &task.PrimaryResultKey, &task.CreatedAt, &task.StartedAt, &task.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}

	task.RequestedFormats = toFormatTypes(formats)
	task.FormatOptions, err = unmarshalFormatOptions(formatOptions)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling format options for task %s: %w", taskID, err)
	}
	return &task, nil
}

// SetTaskPrimaryResultKey updates the task's preview artifact key.
// Intentionally last-writer-wins, no CAS: spec.md §5 accepts the race
// because any completed html/kvp key is functionally interchangeable.
func (s *PostgresStore) SetTaskPrimaryResultKey(ctx context.Context, taskID, resultKey string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks SET primary_result_key = $2 WHERE task_id = $1
	`, taskID, resultKey)
	if err != nil {
		return fmt.Errorf("setting primary result key for task %s: %w", taskID, err)
	}
	return nil
}

// RecomputeTaskStatus aggregates the task's PageUnit rows into a new
// task-level status: completed when no unit is still open and at least
// one completed, failed when no unit is still open and none completed,
// processing while any unit is pending or processing. The Worker calls
// this after every terminal unit transition, and prismctl's cancel
// command after marking units failed, per spec.md §3's lifecycle note.
func (s *PostgresStore) RecomputeTaskStatus(ctx context.Context, taskID string) error {
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status NOT IN ('completed','failed')) AS open_units,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_units,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing_units
		FROM task_pages WHERE task_id = $1
	`, taskID)

	var openUnits, completedUnits, processingUnits int
	if err := row.Scan(&openUnits, &completedUnits, &processingUnits); err != nil {
		return fmt.Errorf("aggregating units for task %s: %w", taskID, err)
	}

	// completed wins whenever at least one unit completed; failed only
	// applies when every terminal unit failed and none completed.
	status := types.TaskPending
	switch {
	case openUnits == 0 && completedUnits > 0:
		status = types.TaskCompleted
	case openUnits == 0:
		status = types.TaskFailed
	case processingUnits > 0 || openUnits > 0:
		status = types.TaskProcessing
	}

	var completedClause string
	if status.Terminal() {
		completedClause = ", completed_at = CURRENT_TIMESTAMP"
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE tasks SET status = $2, started_at = COALESCE(started_at, CURRENT_TIMESTAMP)%s
		WHERE task_id = $1
	`, completedClause), taskID, status)
	if err != nil {
		return fmt.Errorf("updating status for task %s: %w", taskID, err)
	}
	return nil
}

// CreatePageUnit inserts the task_pages row a Dispatcher creates for
// one requested-format x page. Idempotent on the composite identity:
// if a row already exists, whatever its status, the insert is skipped
// (spec.md §4.1).
func (s *PostgresStore) CreatePageUnit(ctx context.Context, unit types.PageUnit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_pages (
			task_id, page_number, format_type, total_pages, status,
			page_image_s3_key
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, page_number, format_type) DO NOTHING
	`, unit.TaskID, unit.PageNumber, unit.Format, unit.TotalPages, unit.Status, unit.PageImageKey)
	if err != nil {
		return fmt.Errorf("creating page unit %s/%d/%s: %w", unit.TaskID, unit.PageNumber, unit.Format, err)
	}
	return nil
}

// GetPageUnit fetches a single task_pages row by composite identity.
func (s *PostgresStore) GetPageUnit(ctx context.Context, taskID string, pageNumber int, format types.FormatType) (*types.PageUnit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, page_number, format_type, total_pages, status, worker_id,
		       page_image_s3_key, result_s3_key, json_result_s3_key, anon_json_s3_key,
		       anon_txt_s3_key, anon_mapping_s3_key, anon_audit_s3_key, error_message,
		       started_at, completed_at, processing_time_ms
		FROM task_pages WHERE task_id = $1 AND page_number = $2 AND format_type = $3
	`, taskID, pageNumber, format)

	var unit types.PageUnit
	err := row.Scan(&unit.TaskID, &unit.PageNumber, &unit.Format, &unit.TotalPages, &unit.Status, &unit.WorkerID,
		&unit.PageImageKey, &unit.ResultKey, &unit.JSONResultKey, &unit.AnonJSONKey,
		&unit.AnonTXTKey, &unit.AnonMappingKey, &unit.AnonAuditKey, &unit.ErrorMessage,
		&unit.StartedAt, &unit.CompletedAt, &unit.ProcessingTimeMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading page unit %s/%d/%s: %w", taskID, pageNumber, format, err)
	}
	return &unit, nil
}

// UpsertPageUnit inserts-or-updates a task_pages row, grounded on
// db_client.py's insert_derived_format_page ON CONFLICT clause. This
// is the one operation that gives the ledger rows it did not create
// itself: a Worker uses it both to advance a Dispatcher-created unit
// through its lifecycle and to create the derived txt row alongside a
// completed html unit (spec.md §4.6, error kind 6).
func (s *PostgresStore) UpsertPageUnit(ctx context.Context, unit types.PageUnit) error {
	now := time.Now().UTC()
	startedAt := unit.StartedAt
	if startedAt == nil && (unit.Status == types.TaskProcessing || unit.Status.Terminal()) {
		startedAt = &now
	}
	var completedAt *time.Time
	if unit.Status.Terminal() {
		completedAt = &now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_pages (
			task_id, page_number, format_type, total_pages, status, worker_id,
			page_image_s3_key, result_s3_key, json_result_s3_key, anon_json_s3_key,
			anon_txt_s3_key, anon_mapping_s3_key, anon_audit_s3_key, error_message,
			processing_time_ms, started_at, completed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (task_id, page_number, format_type) DO UPDATE
		SET status = EXCLUDED.status,
		    worker_id = EXCLUDED.worker_id,
		    result_s3_key = EXCLUDED.result_s3_key,
		    json_result_s3_key = EXCLUDED.json_result_s3_key,
		    anon_json_s3_key = EXCLUDED.anon_json_s3_key,
		    anon_txt_s3_key = EXCLUDED.anon_txt_s3_key,
		    anon_mapping_s3_key = EXCLUDED.anon_mapping_s3_key,
		    anon_audit_s3_key = EXCLUDED.anon_audit_s3_key,
		    error_message = EXCLUDED.error_message,
		    processing_time_ms = EXCLUDED.processing_time_ms,
		    started_at = COALESCE(task_pages.started_at, EXCLUDED.started_at),
		    completed_at = EXCLUDED.completed_at
	`, unit.TaskID, unit.PageNumber, unit.Format, unit.TotalPages, unit.Status, unit.WorkerID,
		unit.PageImageKey, unit.ResultKey, unit.JSONResultKey, unit.AnonJSONKey,
		unit.AnonTXTKey, unit.AnonMappingKey, unit.AnonAuditKey, unit.ErrorMessage,
		unit.ProcessingTimeMS, startedAt, completedAt)
	if err != nil {
		return fmt.Errorf("upserting page unit %s/%d/%s: %w", unit.TaskID, unit.PageNumber, unit.Format, err)
	}
	return nil
}

// ListPageUnits returns every task_pages row for a task, used by P2's
// ledger-completeness property check and by status recomputation
// callers that want the full detail rather than the aggregate.
func (s *PostgresStore) ListPageUnits(ctx context.Context, taskID string) ([]types.PageUnit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, page_number, format_type, total_pages, status, worker_id,
		       page_image_s3_key, result_s3_key, json_result_s3_key, anon_json_s3_key,
		       anon_txt_s3_key, anon_mapping_s3_key, anon_audit_s3_key, error_message,
		       started_at, completed_at, processing_time_ms
		FROM task_pages WHERE task_id = $1 ORDER BY page_number, format_type
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing page units for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var units []types.PageUnit
	for rows.Next() {
		var unit types.PageUnit
		if err := rows.Scan(&unit.TaskID, &unit.PageNumber, &unit.Format, &unit.TotalPages, &unit.Status, &unit.WorkerID,
			&unit.PageImageKey, &unit.ResultKey, &unit.JSONResultKey, &unit.AnonJSONKey,
			&unit.AnonTXTKey, &unit.AnonMappingKey, &unit.AnonAuditKey, &unit.ErrorMessage,
			&unit.StartedAt, &unit.CompletedAt, &unit.ProcessingTimeMS); err != nil {
			return nil, fmt.Errorf("scanning page unit row for task %s: %w", taskID, err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating page units for task %s: %w", taskID, err)
	}
	return units, nil
}

// CountTasksByStatus aggregates the tasks table into per-status
// counts, backing pkg/metrics.Collector's prism_tasks_by_status gauge.
func (s *PostgresStore) CountTasksByStatus(ctx context.Context) (map[types.TaskStatus]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.TaskStatus]int64)
	for rows.Next() {
		var status types.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning task status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task status counts: %w", err)
	}
	return counts, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
