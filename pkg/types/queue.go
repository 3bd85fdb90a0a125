package types

// QueueMessage is the ephemeral envelope a Dispatcher enqueues and a
// Worker blocking-pops. It carries the full addressing a Worker needs
// to process the unit without further ledger lookups; the ledger row
// it corresponds to is the durable record (spec §3, §6).
//
// Messages are delivered at-least-once. A Worker must treat replaying
// a message for an already-completed unit as a no-op (spec P7).
type QueueMessage struct {
	TaskID       string     `json:"task_id"`
	UserID       string     `json:"user_id"`
	PageNumber   int        `json:"page_number"`
	TotalPages   int        `json:"total_pages"`
	FormatType   FormatType `json:"format_type"`
	PageImageKey string     `json:"page_image_key"`

	ParentTaskID string `json:"parent_task_id,omitempty"`

	SelectedKVPs []SelectedKVP `json:"selected_kvps,omitempty"`

	AnonStrategy       AnonStrategy  `json:"anon_strategy,omitempty"`
	AnonGenerateAudit  bool          `json:"anon_generate_audit,omitempty"`
	AnonSelectedFields []SelectedKVP `json:"anon_selected_fields,omitempty"`
}

// TaskUpdate is the payload published on the task_updates channel on
// every status change (spec §6). Field names follow the wire schema,
// which is camelCase unlike the rest of this package's snake_case
// ledger/queue wire types.
type TaskUpdate struct {
	TaskID   string  `json:"taskId"`
	UserID   string  `json:"userId"`
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Error    string  `json:"error,omitempty"`
}
