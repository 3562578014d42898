package metadata

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"dirsync/internal/domain/identity"
	"dirsync/internal/infrastructure/persistence/schema"
)

func setupStore(t *testing.T, table string) *Store {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "meta.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := schema.MigrateMetadata(context.Background(), db, table); err != nil {
		t.Fatalf("migrate metadata: %v", err)
	}

	store := NewStore(db, table)
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})
	return store
}

func TestStoreMergeIsIdempotent(t *testing.T) {
	store := setupStore(t, "")
	ctx := context.Background()
	entry := identity.MetadataEntry{Key: "K1", Name: "ADUsername", Value: "alice"}

	for i := 0; i < 2; i++ {
		if err := store.Merge(ctx, entry); err != nil {
			t.Fatalf("Merge() #%d error = %v", i, err)
		}
	}

	entries, err := store.ListEntries(ctx, "ADUsername")
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0] != entry {
		t.Fatalf("ListEntries() = %#v", entries)
	}
}

func TestStoreMergeOverwritesValue(t *testing.T) {
	store := setupStore(t, "custom_meta")
	ctx := context.Background()

	if store.Table() != "custom_meta" {
		t.Fatalf("Table() = %q", store.Table())
	}
	if err := store.Merge(ctx, identity.MetadataEntry{Key: "K1", Name: "eMail", Value: "old@example.com"}); err != nil {
		t.Fatalf("Merge(old) error = %v", err)
	}
	if err := store.Merge(ctx, identity.MetadataEntry{Key: "K1", Name: "eMail", Value: ""}); err != nil {
		t.Fatalf("Merge(empty) error = %v", err)
	}
	if err := store.Merge(ctx, identity.MetadataEntry{Key: "K1", Name: "ADUsername", Value: "alice"}); err != nil {
		t.Fatalf("Merge(username) error = %v", err)
	}

	entries, err := store.ListEntries(ctx, "eMail")
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Value != "" {
		t.Fatalf("ListEntries(eMail) = %#v, want one empty value", entries)
	}
}

func TestStoreRejectsBlankKey(t *testing.T) {
	store := setupStore(t, "")

	if err := store.Merge(context.Background(), identity.MetadataEntry{Key: " ", Name: "eMail"}); err == nil {
		t.Fatalf("Merge() with blank key error = nil")
	}
	if _, err := store.ListEntries(context.Background(), ""); err == nil {
		t.Fatalf("ListEntries() with blank name error = nil")
	}
}
