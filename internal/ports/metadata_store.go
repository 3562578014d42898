package ports

import (
	"context"
	"errors"

	"dirsync/internal/domain/identity"
)

var ErrMetadataNotConfigured = errors.New("metadata store is not configured")

// MetadataStore is the external key/name/value table linked to directory ids.
// Merge is an upsert on (key, name); each call stands alone.
type MetadataStore interface {
	ListEntries(ctx context.Context, name string) ([]identity.MetadataEntry, error)
	Merge(ctx context.Context, entry identity.MetadataEntry) error
	Close(ctx context.Context) error
}

// MetadataStoreOpener connects on demand so that an unreachable metadata
// store only skips the linker phase.
type MetadataStoreOpener interface {
	OpenMetadataStore(ctx context.Context) (MetadataStore, error)
}

// MetadataStoreOpenerFunc adapts a function to MetadataStoreOpener.
type MetadataStoreOpenerFunc func(ctx context.Context) (MetadataStore, error)

func (f MetadataStoreOpenerFunc) OpenMetadataStore(ctx context.Context) (MetadataStore, error) {
	return f(ctx)
}
