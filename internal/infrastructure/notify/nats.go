package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

const DefaultSubject = "dirsync.changes"

type NATSOptions struct {
	URL     string
	Subject string
	Name    string
	Timeout time.Duration
}

type publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
	Drain() error
}

// NATSNotifier publishes one JSON message per recorded change.
type NATSNotifier struct {
	conn    publisher
	subject string
}

var _ ports.ChangeNotifier = (*NATSNotifier)(nil)

func NewNATSNotifier(ctx context.Context, opts NATSOptions) (*NATSNotifier, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("notify.nats.url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	options := []nats.Option{nats.Timeout(opts.Timeout)}
	if opts.Name != "" {
		options = append(options, nats.Name(opts.Name))
	}
	conn, err := nats.Connect(opts.URL, options...)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", opts.URL)
	}

	logging.Info(logging.WithComponent(ctx, "notify.nats"), "nats connected",
		slog.String("url", conn.ConnectedUrl()),
	)
	return newNATSNotifier(conn, opts.Subject), nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

type changeMessage struct {
	AccountID        string  `json:"account_id"`
	Kind             string  `json:"kind"`
	Status           string  `json:"status"`
	Username         string  `json:"username"`
	Email            string  `json:"email"`
	DisplayName      string  `json:"display_name"`
	PreviousUsername *string `json:"previous_username"`
	PreviousEmail    *string `json:"previous_email"`
	DetectedAt       string  `json:"detected_at"`
	CapturedAt       string  `json:"captured_at"`
}

func newChangeMessage(notice ports.ChangeNotice) changeMessage {
	current := notice.Change.Current
	prevUsername, prevEmail := identity.PreviousValues(notice.Change.Previous)
	return changeMessage{
		AccountID:        identity.FormatID(current.ID),
		Kind:             notice.Change.Kind.String(),
		Status:           string(identity.StatusNew),
		Username:         current.Username,
		Email:            current.Email,
		DisplayName:      current.DisplayName,
		PreviousUsername: prevUsername,
		PreviousEmail:    prevEmail,
		DetectedAt:       identity.FormatTimestamp(notice.DetectedAt),
		CapturedAt:       identity.FormatTimestamp(notice.CapturedAt),
	}
}

// Publish sends every notice and flushes once. Per-message failures are
// collected and the batch keeps going.
func (n *NATSNotifier) Publish(ctx context.Context, notices []ports.ChangeNotice) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(notices) == 0 {
		return nil
	}

	var failures errs.RowErrors
	for _, notice := range notices {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, "check context")
		}

		key := identity.FormatID(notice.Change.Current.ID)
		payload, err := json.Marshal(newChangeMessage(notice))
		if err != nil {
			failures.Add(key, "encode", err)
			continue
		}
		failures.Add(key, "publish", n.conn.Publish(n.subject, payload))
	}

	if err := n.conn.Flush(); err != nil {
		return errs.Wrap(err, "flush nats")
	}
	return failures.Err()
}

func (n *NATSNotifier) Close(ctx context.Context) error {
	if err := n.conn.Drain(); err != nil {
		return errs.Wrap(err, "drain nats")
	}
	logging.Info(logging.WithComponent(ctx, "notify.nats"), "nats connection drained")
	return nil
}
