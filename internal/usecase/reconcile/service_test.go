package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"dirsync/internal/domain/identity"
	"dirsync/internal/ports"
)

var (
	idA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	idB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")

	previousRun = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	currentRun  = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
)

type harness struct {
	directory *fakeDirectory
	snapshots *memSnapshots
	ledger    *memLedger
	uow       *passthroughUoW
	metadata  *memMetadata
	notifier  *fakeNotifier
	service   *Service
}

func newHarness(t *testing.T, accounts ...identity.Account) *harness {
	t.Helper()

	h := &harness{
		directory: &fakeDirectory{accounts: accounts},
		snapshots: newMemSnapshots(),
		ledger:    newMemLedger(),
		uow:       &passthroughUoW{},
		metadata:  newMemMetadata(),
		notifier:  &fakeNotifier{},
	}
	h.service = NewService(h.directory, h.snapshots, h.ledger, h.uow, openerFor(h.metadata, nil), h.notifier, Options{})
	h.service.now = func() time.Time { return currentRun }
	return h
}

func (h *harness) run(t *testing.T) RunReport {
	t.Helper()

	report, err := h.service.Run(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func strPtrValue(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestRunRecordsUsernameChange(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idA, Username: "jdoe2", Email: "j@x.com"})
	h.snapshots.seed(previousRun, identity.Account{ID: idA, Username: "jdoe", Email: "j@x.com"})

	report := h.run(t)

	if !report.HasBaseline || !report.PreviousCapturedAt.Equal(previousRun) {
		t.Fatalf("baseline = %v at %s", report.HasBaseline, report.PreviousCapturedAt)
	}
	if report.Summary != (identity.Summary{Changed: 1}) {
		t.Fatalf("Summary = %+v", report.Summary)
	}

	record, err := h.ledger.Get(context.Background(), idA)
	if err != nil {
		t.Fatalf("ledger Get() error = %v", err)
	}
	if record.Status != identity.StatusNew || record.Username != "jdoe2" || strPtrValue(record.PreviousUsername) != "jdoe" {
		t.Fatalf("record = %+v, previous username %s", record, strPtrValue(record.PreviousUsername))
	}
	if record.Email != "j@x.com" || strPtrValue(record.PreviousEmail) != "j@x.com" {
		t.Fatalf("email %q previous %s", record.Email, strPtrValue(record.PreviousEmail))
	}
	if len(h.ledger.rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(h.ledger.rows))
	}
	if len(h.notifier.notices) != 1 || report.Notified != 1 {
		t.Fatalf("notices = %d, Notified = %d", len(h.notifier.notices), report.Notified)
	}
}

func TestRunRecordsNewAccountAgainstEmptyBaseline(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idB, Username: "bob"})
	h.snapshots.seed(previousRun)

	report := h.run(t)

	if report.Summary != (identity.Summary{New: 1}) {
		t.Fatalf("Summary = %+v", report.Summary)
	}
	record, err := h.ledger.Get(context.Background(), idB)
	if err != nil {
		t.Fatalf("ledger Get() error = %v", err)
	}
	if record.PreviousUsername != nil || record.PreviousEmail != nil {
		t.Fatalf("previous values = %s/%s, want nil", strPtrValue(record.PreviousUsername), strPtrValue(record.PreviousEmail))
	}
}

func TestRunWithoutBaselineOnlyStoresSnapshot(t *testing.T) {
	h := newHarness(t,
		identity.Account{ID: idA, Username: "jdoe"},
		identity.Account{ID: idB, Username: "bob"},
	)

	report := h.run(t)

	if report.HasBaseline || report.Summary != (identity.Summary{}) {
		t.Fatalf("report = %+v", report)
	}
	if len(h.ledger.rows) != 0 || len(h.notifier.notices) != 0 {
		t.Fatalf("ledger rows = %d, notices = %d", len(h.ledger.rows), len(h.notifier.notices))
	}
	if count, _ := h.snapshots.Count(context.Background(), currentRun); count != 2 {
		t.Fatalf("stored entries = %d, want 2", count)
	}
	if h.uow.calls != 1 {
		t.Fatalf("unit of work calls = %d, want 1", h.uow.calls)
	}
}

func TestRunRepeatedDetectionKeepsOneRow(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idA, Username: "jdoe2", Email: "j@x.com"})
	h.snapshots.seed(previousRun, identity.Account{ID: idA, Username: "jdoe", Email: "j@x.com"})
	h.run(t)

	h.directory.accounts = []identity.Account{{ID: idA, Username: "jdoe3", Email: "j@x.com"}}
	later := currentRun.Add(24 * time.Hour)
	h.service.now = func() time.Time { return later }
	report := h.run(t)

	if report.Summary.Changed != 1 || len(h.ledger.rows) != 1 {
		t.Fatalf("Summary = %+v, rows = %d", report.Summary, len(h.ledger.rows))
	}
	record := h.ledger.rows[idA]
	if record.Username != "jdoe3" || strPtrValue(record.PreviousUsername) != "jdoe2" {
		t.Fatalf("record = %+v", record)
	}
	if !record.CreatedAt.Equal(currentRun) || !record.UpdatedAt.Equal(later) {
		t.Fatalf("created %s updated %s", record.CreatedAt, record.UpdatedAt)
	}
	if _, found, _ := h.snapshots.LatestBefore(context.Background(), currentRun); found {
		t.Fatalf("capture older than the baseline was not retired")
	}
}

func TestRunEmptyDirectoryIsNothingToDo(t *testing.T) {
	h := newHarness(t, identity.Account{ID: uuid.Nil, Username: "no-id"})
	h.snapshots.seed(previousRun, identity.Account{ID: idA, Username: "jdoe"})

	report := h.run(t)

	if !report.NothingToDo || report.Invalid != 1 {
		t.Fatalf("report = %+v", report)
	}
	if h.uow.calls != 0 || len(h.snapshots.captures) != 1 || h.metadata.merges != 0 {
		t.Fatalf("store mutated: uow=%d captures=%d merges=%d", h.uow.calls, len(h.snapshots.captures), h.metadata.merges)
	}
}

func TestRunDirectoryFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.directory.err = errBoom

	_, err := h.service.Run(context.Background(), RunInput{})
	if !errors.Is(err, ErrDirectoryRead) || !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want ErrDirectoryRead wrapping boom", err)
	}
	if h.uow.calls != 0 {
		t.Fatalf("unit of work calls = %d, want 0", h.uow.calls)
	}
}

func TestRunSnapshotFailureStopsBeforeLedger(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idA, Username: "jdoe2"})
	h.snapshots.seed(previousRun, identity.Account{ID: idA, Username: "jdoe"})
	h.snapshots.writeErr = errBoom

	_, err := h.service.Run(context.Background(), RunInput{})
	if !errors.Is(err, ErrSnapshotWrite) {
		t.Fatalf("Run() error = %v, want ErrSnapshotWrite", err)
	}
	if len(h.ledger.rows) != 0 || h.metadata.merges != 0 {
		t.Fatalf("later phases ran: rows=%d merges=%d", len(h.ledger.rows), h.metadata.merges)
	}
}

func TestRunLedgerRowFailureDoesNotStopRun(t *testing.T) {
	h := newHarness(t,
		identity.Account{ID: idA, Username: "jdoe"},
		identity.Account{ID: idB, Username: "bob"},
	)
	h.snapshots.seed(previousRun)
	h.ledger.failFor[idA] = errBoom

	report := h.run(t)

	if len(report.LedgerFailures) != 1 || report.LedgerFailures[0].Key != idA.String() {
		t.Fatalf("LedgerFailures = %v", report.LedgerFailures)
	}
	if report.Recorded != 1 || len(h.notifier.notices) != 1 || h.notifier.notices[0].Change.Current.ID != idB {
		t.Fatalf("Recorded = %d, notices = %+v", report.Recorded, h.notifier.notices)
	}

	h.service.failOnRowErrors = true
	h.service.now = func() time.Time { return currentRun.Add(time.Hour) }
	h.snapshots.captures = map[string]identity.Snapshot{}
	h.snapshots.seed(previousRun)
	report, err := h.service.Run(context.Background(), RunInput{})
	if !errors.Is(err, ErrRowFailures) {
		t.Fatalf("Run() error = %v, want ErrRowFailures", err)
	}
	if report.RowFailures() != 1 {
		t.Fatalf("RowFailures() = %d, want 1", report.RowFailures())
	}
}

func TestRunNotifierFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idB, Username: "bob"})
	h.snapshots.seed(previousRun)
	h.notifier.err = errBoom

	report := h.run(t)

	if report.Recorded != 1 || report.NotifyFailures != 1 || report.Notified != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunLinksMetadata(t *testing.T) {
	names := identity.DefaultLinkNames()
	h := newHarness(t,
		identity.Account{ID: idA, Username: "jdoe", Email: "j@x.com"},
		identity.Account{ID: idB, Username: "bob"},
	)
	h.metadata = newMemMetadata(
		identity.MetadataEntry{Key: "K1", Name: names.Username, Value: " JDoe "},
		identity.MetadataEntry{Key: "K2", Name: names.StableID, Value: "{" + strings.ToUpper(idB.String()) + "}"},
		identity.MetadataEntry{Key: "K3", Name: names.StableID, Value: "not-a-guid"},
		identity.MetadataEntry{Key: "K4", Name: names.Username, Value: "ghost"},
		identity.MetadataEntry{Key: "K5", Name: names.Username, Value: "jdoe"},
		identity.MetadataEntry{Key: "K5", Name: names.StableID, Value: idB.String()},
	)
	h.service.metadata = openerFor(h.metadata, nil)

	report := h.run(t)

	if report.Metadata.Skipped || report.Metadata.LinksFilled != 1 || report.Metadata.ValuesPushed != 6 {
		t.Fatalf("Metadata = %+v", report.Metadata)
	}
	if value, _ := h.metadata.value("K1", names.StableID); value != idA.String() {
		t.Fatalf("K1 stable id = %q, want %s", value, idA)
	}
	if value, _ := h.metadata.value("K1", names.Username); value != "jdoe" {
		t.Fatalf("K1 username = %q, want pushed jdoe", value)
	}
	if value, ok := h.metadata.value("K2", names.Email); !ok || value != "" {
		t.Fatalf("K2 email = %q, %v; want empty value written", value, ok)
	}
	if value, _ := h.metadata.value("K5", names.Username); value != "bob" {
		t.Fatalf("K5 username = %q, want bob", value)
	}
	if _, ok := h.metadata.value("K4", names.StableID); ok {
		t.Fatalf("K4 linked to an unknown username")
	}
	if _, ok := h.metadata.value("K3", names.Username); ok {
		t.Fatalf("K3 with unparsable id received a push")
	}
	if !h.metadata.closed {
		t.Fatalf("metadata store not closed")
	}
}

func TestRunMetadataMergeFailureContinues(t *testing.T) {
	names := identity.DefaultLinkNames()
	h := newHarness(t, identity.Account{ID: idA, Username: "jdoe", Email: "j@x.com"})
	h.metadata = newMemMetadata(
		identity.MetadataEntry{Key: "K1", Name: names.StableID, Value: idA.String()},
		identity.MetadataEntry{Key: "K2", Name: names.StableID, Value: idA.String()},
	)
	h.metadata.failMerge["K1"] = errBoom
	h.service.metadata = openerFor(h.metadata, nil)

	report := h.run(t)

	if len(report.Metadata.Failures) != 2 || report.Metadata.ValuesPushed != 2 {
		t.Fatalf("Metadata = %+v", report.Metadata)
	}
	if value, _ := h.metadata.value("K2", names.Email); value != "j@x.com" {
		t.Fatalf("K2 email = %q", value)
	}
}

func TestRunMetadataSkips(t *testing.T) {
	cases := []struct {
		name   string
		opener ports.MetadataStoreOpener
		input  RunInput
		reason string
	}{
		{name: "disabled", opener: openerFor(newMemMetadata(), nil), input: RunInput{SkipMetadata: true}, reason: "disabled"},
		{name: "not configured", opener: openerFor(nil, ports.ErrMetadataNotConfigured), reason: "not configured"},
		{name: "nil opener", opener: nil, reason: "not configured"},
		{name: "unavailable", opener: openerFor(nil, errBoom), reason: "unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, identity.Account{ID: idA, Username: "jdoe"})
			h.service.metadata = tc.opener

			report, err := h.service.Run(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !report.Metadata.Skipped || report.Metadata.SkipReason != tc.reason {
				t.Fatalf("Metadata = %+v, want skipped %q", report.Metadata, tc.reason)
			}
		})
	}
}

func TestRunReportsDuplicateIDs(t *testing.T) {
	h := newHarness(t,
		identity.Account{ID: idA, Username: "jdoe"},
		identity.Account{ID: idA, Username: "jdoe-copy"},
	)

	report := h.run(t)

	if report.Accounts != 1 || report.Duplicates != 1 {
		t.Fatalf("Accounts = %d, Duplicates = %d", report.Accounts, report.Duplicates)
	}
	snapshot, _ := h.snapshots.Read(context.Background(), currentRun)
	if snapshot.Accounts[idA].Username != "jdoe" {
		t.Fatalf("stored username = %q, want first occurrence", snapshot.Accounts[idA].Username)
	}
}

func TestRunRejectsMissingCollaborators(t *testing.T) {
	service := NewService(nil, nil, nil, nil, nil, nil, Options{})

	if _, err := service.Run(context.Background(), RunInput{}); err == nil {
		t.Fatalf("Run() error = nil, want missing collaborator error")
	}
}

func TestReadOperations(t *testing.T) {
	h := newHarness(t, identity.Account{ID: idA, Username: "jdoe2"})
	h.snapshots.seed(previousRun, identity.Account{ID: idA, Username: "jdoe"}, identity.Account{ID: idB, Username: "bob"})
	h.run(t)
	ctx := context.Background()

	status, err := h.service.SnapshotStatus(ctx)
	if err != nil {
		t.Fatalf("SnapshotStatus() error = %v", err)
	}
	if status.Latest == nil || !status.Latest.CapturedAt.Equal(currentRun) || status.Latest.Entries != 1 {
		t.Fatalf("Latest = %+v", status.Latest)
	}
	if status.Previous == nil || !status.Previous.CapturedAt.Equal(previousRun) || status.Previous.Entries != 2 {
		t.Fatalf("Previous = %+v", status.Previous)
	}

	record, err := h.service.GetChange(ctx, "{"+strings.ToUpper(idA.String())+"}")
	if err != nil || record.Username != "jdoe2" {
		t.Fatalf("GetChange() = %+v, %v", record, err)
	}
	if _, err := h.service.GetChange(ctx, idB.String()); !errors.Is(err, ports.ErrChangeNotFound) {
		t.Fatalf("GetChange(unknown) error = %v", err)
	}
	if _, err := h.service.GetChange(ctx, "garbage"); err == nil {
		t.Fatalf("GetChange(garbage) error = nil")
	}

	items, err := h.service.ListChanges(ctx, ports.ChangeFilter{})
	if err != nil || len(items) != 1 {
		t.Fatalf("ListChanges() = %d items, %v", len(items), err)
	}
}
