package identity

import (
	"sort"
	"strings"
)

// LinkNames is the vocabulary of the external metadata table.
type LinkNames struct {
	StableID string
	Username string
	Email    string
}

func DefaultLinkNames() LinkNames {
	return LinkNames{
		StableID: "ADObjectGuid",
		Username: "ADUsername",
		Email:    "eMail",
	}
}

// WithDefaults fills blank names from DefaultLinkNames.
func (n LinkNames) WithDefaults() LinkNames {
	defaults := DefaultLinkNames()
	if strings.TrimSpace(n.StableID) == "" {
		n.StableID = defaults.StableID
	}
	if strings.TrimSpace(n.Username) == "" {
		n.Username = defaults.Username
	}
	if strings.TrimSpace(n.Email) == "" {
		n.Email = defaults.Email
	}
	return n
}

// MetadataEntry is one (key, name, value) triple of the external store.
type MetadataEntry struct {
	Key   string
	Name  string
	Value string
}

// PlanMissingLinks returns the stable-id links to merge for keys that carry a
// username link but no stable-id link, matched case-insensitively against idx.
func PlanMissingLinks(usernameLinks []MetadataEntry, stableIDLinks []MetadataEntry, idx *Index, names LinkNames) []MetadataEntry {
	linked := make(map[string]struct{}, len(stableIDLinks))
	for _, entry := range stableIDLinks {
		if strings.TrimSpace(entry.Value) != "" {
			linked[entry.Key] = struct{}{}
		}
	}

	planned := make([]MetadataEntry, 0)
	for _, entry := range usernameLinks {
		username := strings.TrimSpace(entry.Value)
		if entry.Key == "" || username == "" {
			continue
		}
		if _, ok := linked[entry.Key]; ok {
			continue
		}

		account, ok := idx.ByUsername(username)
		if !ok {
			continue
		}
		planned = append(planned, MetadataEntry{
			Key:   entry.Key,
			Name:  names.StableID,
			Value: FormatID(account.ID),
		})
	}

	sortEntries(planned)
	return planned
}

// PlanMetadataPush returns username and email links to merge for every key
// whose stable-id link resolves to an account in idx.
func PlanMetadataPush(stableIDLinks []MetadataEntry, idx *Index, names LinkNames) []MetadataEntry {
	planned := make([]MetadataEntry, 0)
	for _, entry := range stableIDLinks {
		if entry.Key == "" {
			continue
		}
		id, err := ParseID(entry.Value)
		if err != nil {
			continue
		}

		account, ok := idx.ByID(id)
		if !ok {
			continue
		}
		planned = append(planned,
			MetadataEntry{Key: entry.Key, Name: names.Username, Value: account.Username},
			MetadataEntry{Key: entry.Key, Name: names.Email, Value: account.Email},
		)
	}

	sortEntries(planned)
	return planned
}

func sortEntries(entries []MetadataEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Name < entries[j].Name
	})
}
