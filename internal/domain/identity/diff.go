package identity

import (
	"sort"
)

// Summary counts classifications of one diff, including unchanged accounts.
type Summary struct {
	New       int
	Changed   int
	Unchanged int
}

// Classify compares current against previous. A nil previous means no
// baseline exists and nothing is classified. Unchanged accounts are not
// returned and accounts that only exist in previous are ignored.
// The result is ordered by account id.
func Classify(current Snapshot, previous *Snapshot) []Change {
	if previous == nil {
		return nil
	}

	changes := make([]Change, 0)
	for id, account := range current.Accounts {
		before, found := previous.Accounts[id]
		if !found {
			changes = append(changes, Change{Kind: KindNew, Current: account})
			continue
		}
		if SameIdentity(account, before) {
			continue
		}

		prev := before
		changes = append(changes, Change{Kind: KindChanged, Current: account, Previous: &prev})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Current.ID.String() < changes[j].Current.ID.String()
	})
	return changes
}

// Summarize counts the outcome of Classify for the same inputs.
func Summarize(current Snapshot, changes []Change) Summary {
	var summary Summary
	for _, change := range changes {
		switch change.Kind {
		case KindNew:
			summary.New++
		case KindChanged:
			summary.Changed++
		}
	}
	summary.Unchanged = current.Len() - summary.New - summary.Changed
	return summary
}
