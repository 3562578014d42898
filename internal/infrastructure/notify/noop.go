package notify

import (
	"context"

	"dirsync/internal/ports"
)

// Noop is used when no broker is configured.
type Noop struct{}

var _ ports.ChangeNotifier = Noop{}

func (Noop) Publish(context.Context, []ports.ChangeNotice) error { return nil }
