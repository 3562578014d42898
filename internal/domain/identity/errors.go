package identity

import (
	"errors"
	"fmt"
)

var (
	ErrIDRequired       = errors.New("account id is required")
	ErrUsernameRequired = errors.New("account username is required")
)

type InvalidIDError struct {
	Value string
	Err   error
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid account id %q: %v", e.Value, e.Err)
}

func (e *InvalidIDError) Unwrap() error { return e.Err }
