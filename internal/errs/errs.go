package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// WithStack captures a stack trace once, at the boundary where a fatal run error is created.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var se *StackError
	if errors.As(err, &se) {
		return err
	}

	return &StackError{
		err:   err,
		stack: debug.Stack(),
	}
}

// StackError wraps an error and stores a stack trace.
type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

// RowError is a failure of one independent row operation (ledger upsert, metadata merge).
type RowError struct {
	Key string
	Op  string
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// RowErrors collects row failures of a batch that kept going after each one.
type RowErrors []RowError

func (r RowErrors) Error() string {
	switch len(r) {
	case 0:
		return "no row errors"
	case 1:
		return r[0].Error()
	}

	parts := make([]string, 0, len(r))
	for _, rowErr := range r {
		parts = append(parts, rowErr.Error())
	}
	return fmt.Sprintf("%d row errors: %s", len(r), strings.Join(parts, "; "))
}

func (r RowErrors) Unwrap() []error {
	out := make([]error, 0, len(r))
	for _, rowErr := range r {
		out = append(out, rowErr)
	}
	return out
}

// Add records a failed row; nil errors are ignored.
func (r *RowErrors) Add(key string, op string, err error) {
	if err == nil {
		return
	}
	*r = append(*r, RowError{Key: key, Op: op, Err: err})
}

// Err returns nil for an empty collection so callers can return it directly.
func (r RowErrors) Err() error {
	if len(r) == 0 {
		return nil
	}
	return r
}

// Usage: slog.Any("err", errs.Loggable(err))
type loggable struct{ err error }

func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}

	var rows RowErrors
	if errors.As(l.err, &rows) {
		attrs = append(attrs, slog.Int("row_errors", len(rows)))
	}

	var se *StackError
	if errors.As(l.err, &se) {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
