package types

import "time"

// PageUnit is the unit a Worker actually picks up and completes: one
// page of one task rendered in one requested format. Its composite
// identity (TaskID, PageNumber, FormatType) is unique in the ledger;
// Dispatcher creates one row per requested-format x page, and a
// Worker may additionally create a txt row as a side effect of
// completing an html unit (the derived-format rule, spec §4.6).
type PageUnit struct {
	TaskID     string
	PageNumber int
	Format     FormatType

	TotalPages int
	Status     TaskStatus
	WorkerID   string

	PageImageKey string

	// ResultKey is the primary artifact produced for this unit's
	// format. Side keys below are populated only by the formats that
	// produce more than one artifact per unit.
	ResultKey       string
	JSONResultKey   string
	AnonJSONKey     string
	AnonTXTKey      string
	AnonMappingKey  string
	AnonAuditKey    string

	ErrorMessage string

	StartedAt        *time.Time
	CompletedAt      *time.Time
	ProcessingTimeMS int64
}

// Done reports whether the unit has reached a terminal status.
func (p *PageUnit) Done() bool {
	return p.Status.Terminal()
}
