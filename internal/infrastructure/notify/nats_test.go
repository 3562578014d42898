package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	failOn   int
	flushed  int
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	if c.failOn > 0 && len(c.payloads) == c.failOn {
		return errors.New("slow consumer")
	}
	return nil
}

func (c *recordingConn) Flush() error {
	c.flushed++
	return nil
}

func (c *recordingConn) Drain() error { return nil }

func TestNATSNotifierPublishesChangePayload(t *testing.T) {
	conn := &recordingConn{}
	notifier := newNATSNotifier(conn, "")
	at := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	previous := identity.Account{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Username: "alice"}
	current := previous
	current.Username = "alice.smith"

	err := notifier.Publish(context.Background(), []ports.ChangeNotice{{
		Change:     identity.Change{Kind: identity.KindChanged, Current: current, Previous: &previous},
		DetectedAt: at,
		CapturedAt: at,
	}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(conn.subjects) != 1 || conn.subjects[0] != DefaultSubject || conn.flushed != 1 {
		t.Fatalf("subjects = %v, flushed = %d", conn.subjects, conn.flushed)
	}

	var got map[string]any
	if err := json.Unmarshal(conn.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got["kind"] != "changed" || got["username"] != "alice.smith" || got["previous_username"] != "alice" {
		t.Fatalf("payload = %v", got)
	}
	if got["previous_email"] != nil {
		t.Fatalf("previous_email = %v, want null", got["previous_email"])
	}
	if got["detected_at"] != "2026-03-02T06:00:00.000000000Z" {
		t.Fatalf("detected_at = %v", got["detected_at"])
	}
}

func TestNATSNotifierCollectsPublishFailures(t *testing.T) {
	conn := &recordingConn{failOn: 1}
	notifier := newNATSNotifier(conn, "hr.accounts")
	notices := []ports.ChangeNotice{
		{Change: identity.Change{Kind: identity.KindNew, Current: identity.Account{ID: uuid.New(), Username: "a"}}},
		{Change: identity.Change{Kind: identity.KindNew, Current: identity.Account{ID: uuid.New(), Username: "b"}}},
	}

	err := notifier.Publish(context.Background(), notices)
	var rows errs.RowErrors
	if !errors.As(err, &rows) || len(rows) != 1 {
		t.Fatalf("Publish() error = %v, want one row error", err)
	}
	if len(conn.payloads) != 2 || conn.subjects[1] != "hr.accounts" {
		t.Fatalf("payloads = %d, subjects = %v", len(conn.payloads), conn.subjects)
	}
}
