package types

import "time"

// TaskStatus is the lifecycle state of a Task or a PageUnit. Both
// share the same four-state machine: pending -> processing ->
// {completed, failed}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the top-level unit of submission: one uploaded document,
// one or more requested output formats, one or more pages. A Task
// owns a set of PageUnit rows (one per requested-format x page) and
// its own status is recomputed from that set's aggregate state.
type Task struct {
	TaskID           string
	UserID           string
	SourceFileKey    string
	RequestedFormats []FormatType
	FormatOptions    FormatOptions
	TotalPages       int
	Status           TaskStatus

	// PrimaryResultKey is the object-store key of the "preview"
	// artifact: html if any html unit completed, else kvp (spec P5).
	// Units of other formats never set it, so a task with no completed
	// html or kvp unit has an empty key.
	PrimaryResultKey string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// WantsFormat reports whether f is among the task's requested
// formats.
func (t *Task) WantsFormat(f FormatType) bool {
	for _, rf := range t.RequestedFormats {
		if rf == f {
			return true
		}
	}
	return false
}
