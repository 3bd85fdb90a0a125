// Package ledgertest provides an in-memory Store fake for tests,
// standing in for pgxmock (not present in this module's dependency
// pack) behind the same ledger.Store interface the production
// pgx-backed repository implements.
package ledgertest

import (
	"context"
	"sync"

	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/types"
)

type unitKey struct {
	taskID     string
	pageNumber int
	format     types.FormatType
}

// Fake is a goroutine-safe, in-memory implementation of ledger.Store.
type Fake struct {
	mu sync.Mutex

	tasks map[string]types.Task
	units map[unitKey]types.PageUnit
}

// New returns an empty Fake ready for use.
func New() *Fake {
	return &Fake{
		tasks: make(map[string]types.Task),
		units: make(map[unitKey]types.PageUnit),
	}
}

func (f *Fake) CreateTask(_ context.Context, task types.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tasks[task.TaskID]; exists {
		return nil
	}
	f.tasks[task.TaskID] = task
	return nil
}

func (f *Fake) GetTask(_ context.Context, taskID string) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &task, nil
}

func (f *Fake) SetTaskPrimaryResultKey(_ context.Context, taskID, resultKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return ledger.ErrNotFound
	}
	task.PrimaryResultKey = resultKey
	f.tasks[taskID] = task
	return nil
}

func (f *Fake) RecomputeTaskStatus(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return ledger.ErrNotFound
	}

	openUnits, completedUnits, processingUnits := 0, 0, 0
	for k, u := range f.units {
		if k.taskID != taskID {
			continue
		}
		switch {
		case !u.Status.Terminal():
			openUnits++
			if u.Status == types.TaskProcessing {
				processingUnits++
			}
		case u.Status == types.TaskCompleted:
			completedUnits++
		}
	}

	// completed wins whenever at least one unit completed; failed only
	// applies when every terminal unit failed and none completed.
	switch {
	case openUnits == 0 && completedUnits > 0:
		task.Status = types.TaskCompleted
	case openUnits == 0:
		task.Status = types.TaskFailed
	case processingUnits > 0 || openUnits > 0:
		task.Status = types.TaskProcessing
	default:
		task.Status = types.TaskPending
	}
	f.tasks[taskID] = task
	return nil
}

func (f *Fake) CreatePageUnit(_ context.Context, unit types.PageUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := unitKey{unit.TaskID, unit.PageNumber, unit.Format}
	if existing, ok := f.units[key]; ok && existing.Status.Terminal() {
		return nil
	}
	if _, ok := f.units[key]; !ok {
		f.units[key] = unit
	}
	return nil
}

func (f *Fake) GetPageUnit(_ context.Context, taskID string, pageNumber int, format types.FormatType) (*types.PageUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[unitKey{taskID, pageNumber, format}]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &unit, nil
}

func (f *Fake) UpsertPageUnit(_ context.Context, unit types.PageUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[unitKey{unit.TaskID, unit.PageNumber, unit.Format}] = unit
	return nil
}

func (f *Fake) ListPageUnits(_ context.Context, taskID string) ([]types.PageUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.PageUnit
	for k, u := range f.units {
		if k.taskID == taskID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *Fake) CountTasksByStatus(_ context.Context) (map[types.TaskStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[types.TaskStatus]int64)
	for _, task := range f.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

func (f *Fake) Close() {}

var _ ledger.Store = (*Fake)(nil)
