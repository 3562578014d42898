package identity

import "time"

// Status of a change ledger row.
//
// NEW is written both for unseen accounts and for detected username/email
// changes; downstream tooling treats it as "needs attention".
type Status string

const StatusNew Status = "NEW"

type Kind int

const (
	KindUnchanged Kind = iota
	KindNew
	KindChanged
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindChanged:
		return "changed"
	default:
		return "unchanged"
	}
}

// Change is one classified account. Previous is nil for KindNew.
type Change struct {
	Kind     Kind
	Current  Account
	Previous *Account
}

// ChangeRecord is the persisted ledger row for one account.
type ChangeRecord struct {
	AccountID        string
	Status           Status
	DetectedAt       time.Time
	EmployeeNumber   string
	DisplayName      string
	Company          string
	Department       string
	PreviousUsername *string
	Username         string
	PreviousEmail    *string
	Email            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PreviousValues returns the nullable previous username/email pair written to
// the ledger: nil when there is no previous record or the value was empty.
func PreviousValues(previous *Account) (username *string, email *string) {
	if previous == nil {
		return nil, nil
	}
	return nonEmpty(previous.Username), nonEmpty(previous.Email)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}
