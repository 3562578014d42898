package identity

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is fixed width so that stored timestamps sort as text.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is a full capture keyed by stable id.
type Snapshot struct {
	CapturedAt time.Time
	Accounts   map[uuid.UUID]Account
}

func NewSnapshot(capturedAt time.Time, accounts []Account) Snapshot {
	byID := make(map[uuid.UUID]Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	return Snapshot{CapturedAt: capturedAt, Accounts: byID}
}

func (s Snapshot) Len() int { return len(s.Accounts) }

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
