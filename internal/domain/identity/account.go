package identity

import (
	"strings"

	"github.com/google/uuid"
)

// Account is one directory user at one capture.
type Account struct {
	ID          uuid.UUID
	Username    string
	Email       string
	DisplayName string
	Company     string
	Department  string
}

// Normalize trims every text attribute. Missing values are already "".
func (a Account) Normalize() Account {
	return Account{
		ID:          a.ID,
		Username:    strings.TrimSpace(a.Username),
		Email:       strings.TrimSpace(a.Email),
		DisplayName: strings.TrimSpace(a.DisplayName),
		Company:     strings.TrimSpace(a.Company),
		Department:  strings.TrimSpace(a.Department),
	}
}

// Valid reports whether the account can enter a snapshot.
func (a Account) Valid() bool {
	return a.ID != uuid.Nil && strings.TrimSpace(a.Username) != ""
}

// SameIdentity compares the attributes that drive change detection.
func SameIdentity(a, b Account) bool {
	return normalizedField(a.Username) == normalizedField(b.Username) &&
		normalizedField(a.Email) == normalizedField(b.Email)
}

func normalizedField(s string) string {
	return strings.TrimSpace(s)
}

// ParseID accepts canonical, braced and urn:uuid forms and rejects the nil id.
func ParseID(raw string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uuid.Nil, ErrIDRequired
	}

	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, &InvalidIDError{Value: raw, Err: err}
	}
	if id == uuid.Nil {
		return uuid.Nil, &InvalidIDError{Value: raw, Err: ErrIDRequired}
	}
	return id, nil
}

// FormatID renders the textual form written into metadata links.
func FormatID(id uuid.UUID) string {
	return id.String()
}
