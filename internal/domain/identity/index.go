package identity

import (
	"strings"

	"github.com/google/uuid"
)

// Index is the per-run lookup built once from a directory capture.
// It is never mutated after NewIndex returns.
type Index struct {
	accounts   []Account
	byID       map[uuid.UUID]Account
	byUsername map[string]Account

	invalid    int
	duplicates int
}

// NewIndex normalizes accounts, drops invalid ones and keeps the first
// occurrence of a repeated id. Username lookups are case-insensitive and the
// last account carrying a username wins.
func NewIndex(accounts []Account) *Index {
	idx := &Index{
		accounts:   make([]Account, 0, len(accounts)),
		byID:       make(map[uuid.UUID]Account, len(accounts)),
		byUsername: make(map[string]Account, len(accounts)),
	}

	for _, raw := range accounts {
		account := raw.Normalize()
		if !account.Valid() {
			idx.invalid++
			continue
		}
		if _, seen := idx.byID[account.ID]; seen {
			idx.duplicates++
			continue
		}

		idx.accounts = append(idx.accounts, account)
		idx.byID[account.ID] = account
		idx.byUsername[usernameKey(account.Username)] = account
	}

	return idx
}

// Accounts returns a copy of the accepted accounts in capture order.
func (i *Index) Accounts() []Account {
	out := make([]Account, len(i.accounts))
	copy(out, i.accounts)
	return out
}

func (i *Index) Len() int { return len(i.accounts) }

func (i *Index) ByID(id uuid.UUID) (Account, bool) {
	account, ok := i.byID[id]
	return account, ok
}

func (i *Index) ByUsername(username string) (Account, bool) {
	key := usernameKey(username)
	if key == "" {
		return Account{}, false
	}
	account, ok := i.byUsername[key]
	return account, ok
}

// Snapshot returns the id-keyed view used by the diff.
func (i *Index) Snapshot() Snapshot {
	accounts := make(map[uuid.UUID]Account, len(i.byID))
	for id, account := range i.byID {
		accounts[id] = account
	}
	return Snapshot{Accounts: accounts}
}

func (i *Index) Invalid() int    { return i.invalid }
func (i *Index) Duplicates() int { return i.duplicates }

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
