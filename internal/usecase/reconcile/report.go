package reconcile

import (
	"time"

	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
)

// RunReport describes what one run did. Row failures never abort a run.
type RunReport struct {
	NothingToDo bool

	CapturedAt time.Time
	Accounts   int
	Invalid    int
	Duplicates int

	HasBaseline        bool
	PreviousCapturedAt time.Time

	Summary        identity.Summary
	Recorded       int
	LedgerFailures errs.RowErrors

	Notified       int
	NotifyFailures int

	Metadata MetadataReport
}

type MetadataReport struct {
	Skipped    bool
	SkipReason string

	LinksFilled  int
	ValuesPushed int
	Failures     errs.RowErrors
}

// RowFailures counts ledger and metadata rows that failed.
func (r RunReport) RowFailures() int {
	return len(r.LedgerFailures) + len(r.Metadata.Failures)
}
