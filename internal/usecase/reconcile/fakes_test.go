package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"dirsync/internal/domain/identity"
	"dirsync/internal/ports"
)

type fakeDirectory struct {
	accounts []identity.Account
	err      error
}

func (f *fakeDirectory) ListAccounts(context.Context) ([]identity.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]identity.Account, len(f.accounts))
	copy(out, f.accounts)
	return out, nil
}

// memSnapshots keeps the newest existing capture on write, like the gorm store.
type memSnapshots struct {
	captures map[string]identity.Snapshot
	writeErr error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{captures: map[string]identity.Snapshot{}}
}

func (m *memSnapshots) keys() []string {
	keys := make([]string, 0, len(m.captures))
	for key := range m.captures {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *memSnapshots) seed(at time.Time, accounts ...identity.Account) {
	m.captures[identity.FormatTimestamp(at)] = identity.NewSnapshot(at, accounts)
}

func (m *memSnapshots) Write(_ context.Context, capturedAt time.Time, accounts []identity.Account) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	stamp := identity.FormatTimestamp(capturedAt)
	keys := m.keys()
	if len(keys) > 0 {
		latest := keys[len(keys)-1]
		if stamp <= latest {
			return ports.ErrCaptureNotNewer
		}
		for _, key := range keys[:len(keys)-1] {
			delete(m.captures, key)
		}
	}
	m.captures[stamp] = identity.NewSnapshot(capturedAt.UTC(), accounts)
	return nil
}

func (m *memSnapshots) LatestBefore(_ context.Context, capturedAt time.Time) (time.Time, bool, error) {
	stamp := identity.FormatTimestamp(capturedAt)
	keys := m.keys()
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < stamp {
			return m.captures[keys[i]].CapturedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (m *memSnapshots) Latest(context.Context) (time.Time, bool, error) {
	keys := m.keys()
	if len(keys) == 0 {
		return time.Time{}, false, nil
	}
	return m.captures[keys[len(keys)-1]].CapturedAt, true, nil
}

func (m *memSnapshots) Read(_ context.Context, capturedAt time.Time) (identity.Snapshot, error) {
	snapshot, ok := m.captures[identity.FormatTimestamp(capturedAt)]
	if !ok {
		return identity.NewSnapshot(capturedAt, nil), nil
	}
	return snapshot, nil
}

func (m *memSnapshots) Count(_ context.Context, capturedAt time.Time) (int64, error) {
	return int64(m.captures[identity.FormatTimestamp(capturedAt)].Len()), nil
}

type passthroughUoW struct {
	calls int
}

func (u *passthroughUoW) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

type memLedger struct {
	rows    map[uuid.UUID]identity.ChangeRecord
	failFor map[uuid.UUID]error
}

func newMemLedger() *memLedger {
	return &memLedger{
		rows:    map[uuid.UUID]identity.ChangeRecord{},
		failFor: map[uuid.UUID]error{},
	}
}

func (m *memLedger) put(account identity.Account, previous *identity.Account, detectedAt time.Time) error {
	if err := m.failFor[account.ID]; err != nil {
		return err
	}
	prevUsername, prevEmail := identity.PreviousValues(previous)
	record := identity.ChangeRecord{
		AccountID:        identity.FormatID(account.ID),
		Status:           identity.StatusNew,
		DetectedAt:       detectedAt,
		DisplayName:      account.DisplayName,
		Company:          account.Company,
		Department:       account.Department,
		PreviousUsername: prevUsername,
		Username:         account.Username,
		PreviousEmail:    prevEmail,
		Email:            account.Email,
		CreatedAt:        detectedAt,
		UpdatedAt:        detectedAt,
	}
	if existing, ok := m.rows[account.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	m.rows[account.ID] = record
	return nil
}

func (m *memLedger) RecordNew(_ context.Context, account identity.Account, previous *identity.Account, detectedAt time.Time) error {
	return m.put(account, previous, detectedAt)
}

func (m *memLedger) RecordChanged(_ context.Context, account identity.Account, previous identity.Account, detectedAt time.Time) error {
	return m.put(account, &previous, detectedAt)
}

func (m *memLedger) Get(_ context.Context, id uuid.UUID) (identity.ChangeRecord, error) {
	record, ok := m.rows[id]
	if !ok {
		return identity.ChangeRecord{}, ports.ErrChangeNotFound
	}
	return record, nil
}

func (m *memLedger) List(context.Context, ports.ChangeFilter) ([]identity.ChangeRecord, error) {
	out := make([]identity.ChangeRecord, 0, len(m.rows))
	for _, record := range m.rows {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

type memMetadata struct {
	values    map[[2]string]string
	failMerge map[string]error
	listErr   error
	merges    int
	closed    bool
}

func newMemMetadata(entries ...identity.MetadataEntry) *memMetadata {
	m := &memMetadata{values: map[[2]string]string{}, failMerge: map[string]error{}}
	for _, entry := range entries {
		m.values[[2]string{entry.Key, entry.Name}] = entry.Value
	}
	return m
}

func (m *memMetadata) value(key string, name string) (string, bool) {
	value, ok := m.values[[2]string{key, name}]
	return value, ok
}

func (m *memMetadata) ListEntries(_ context.Context, name string) ([]identity.MetadataEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]identity.MetadataEntry, 0)
	for k, value := range m.values {
		if k[1] == name {
			out = append(out, identity.MetadataEntry{Key: k[0], Name: k[1], Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memMetadata) Merge(_ context.Context, entry identity.MetadataEntry) error {
	if err := m.failMerge[entry.Key]; err != nil {
		return err
	}
	m.merges++
	m.values[[2]string{entry.Key, entry.Name}] = entry.Value
	return nil
}

func (m *memMetadata) Close(context.Context) error {
	m.closed = true
	return nil
}

func openerFor(store ports.MetadataStore, err error) ports.MetadataStoreOpener {
	return ports.MetadataStoreOpenerFunc(func(context.Context) (ports.MetadataStore, error) {
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}

type fakeNotifier struct {
	notices []ports.ChangeNotice
	err     error
}

func (f *fakeNotifier) Publish(_ context.Context, notices []ports.ChangeNotice) error {
	f.notices = append(f.notices, notices...)
	return f.err
}

var errBoom = errors.New("boom")
