package ports

import (
	"context"
	"errors"

	"dirsync/internal/domain/identity"
)

var ErrDirectoryUnavailable = errors.New("directory source unavailable")

// DirectorySource enumerates every user account of the directory.
// Implementations drop entries without a stable id or username.
type DirectorySource interface {
	ListAccounts(ctx context.Context) ([]identity.Account, error)
}
