package reconcile

import (
	"errors"
	"time"

	"dirsync/internal/domain/identity"
	"dirsync/internal/ports"
)

var (
	ErrDirectoryRead = errors.New("directory read failed")
	ErrSnapshotWrite = errors.New("snapshot write failed")
	ErrRowFailures   = errors.New("row operations failed")
)

type Options struct {
	LinkNames       identity.LinkNames
	FailOnRowErrors bool
}

type Service struct {
	directory ports.DirectorySource
	snapshots ports.SnapshotStore
	ledger    ports.ChangeLedger
	uow       ports.UnitOfWork
	metadata  ports.MetadataStoreOpener
	notifier  ports.ChangeNotifier

	names           identity.LinkNames
	failOnRowErrors bool
	now             func() time.Time
}

// NewService wires one reconcile run. metadata and notifier are optional.
func NewService(
	directory ports.DirectorySource,
	snapshots ports.SnapshotStore,
	ledger ports.ChangeLedger,
	uow ports.UnitOfWork,
	metadata ports.MetadataStoreOpener,
	notifier ports.ChangeNotifier,
	opts Options,
) *Service {
	return &Service{
		directory:       directory,
		snapshots:       snapshots,
		ledger:          ledger,
		uow:             uow,
		metadata:        metadata,
		notifier:        notifier,
		names:           opts.LinkNames.WithDefaults(),
		failOnRowErrors: opts.FailOnRowErrors,
		now:             time.Now,
	}
}

type RunInput struct {
	SkipMetadata bool
}
