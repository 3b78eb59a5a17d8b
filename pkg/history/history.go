// Package history reads and writes the merge audit log stored on a record
package history

import (
	"bytes"
	"encoding/json"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// legacyKey is the property older writers wrapped the entry array in
const legacyKey = "_merge_history"

// Parse decodes a history field value. Empty input is an empty history. The
// legacy {"_merge_history": [...]} object is accepted and unwrapped. Anything
// else returns an empty history together with a MalformedHistoryError, so
// callers can report the loss and carry on.
func Parse(raw string) ([]models.HistoryEntry, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.HistoryEntry{}, nil
	}

	switch data[0] {
	case '[':
		var entries []models.HistoryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return []models.HistoryEntry{}, errors.NewMalformedHistoryError("history is not a valid entry array: %v", err)
		}
		return normalize(entries), nil
	case '{':
		var legacy map[string]json.RawMessage
		if err := json.Unmarshal(data, &legacy); err != nil {
			return []models.HistoryEntry{}, errors.NewMalformedHistoryError("history is not valid JSON: %v", err)
		}
		inner, ok := legacy[legacyKey]
		inner = bytes.TrimSpace(inner)
		if !ok || len(inner) == 0 || inner[0] != '[' {
			return []models.HistoryEntry{}, errors.NewMalformedHistoryError("history object has no %s array", legacyKey)
		}
		return Parse(string(inner))
	default:
		return []models.HistoryEntry{}, errors.NewMalformedHistoryError("history has unrecognized shape")
	}
}

// normalize fills the action of entries written before unmerge existed
func normalize(entries []models.HistoryEntry) []models.HistoryEntry {
	if entries == nil {
		return []models.HistoryEntry{}
	}
	for i := range entries {
		if entries[i].Action == "" {
			entries[i].Action = models.HistoryActionMerge
		}
	}
	return entries
}

// ParseValue parses the history stored in a record field value
func ParseValue(v models.Value) ([]models.HistoryEntry, error) {
	if v.IsEmpty() {
		return []models.HistoryEntry{}, nil
	}
	return Parse(v.String())
}

// Serialize encodes entries in the standard array shape
func Serialize(entries []models.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Append returns a new slice with entry after the existing entries. The
// input slice is never modified.
func Append(entries []models.HistoryEntry, entry models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, entry)
}

// FindMerge returns the merge entry with the given id
func FindMerge(entries []models.HistoryEntry, mergeID string) (models.HistoryEntry, bool) {
	for _, e := range entries {
		if e.MergeID == mergeID && e.Action == models.HistoryActionMerge {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}

// IsUnmerged reports whether an unmerge entry already references mergeID
func IsUnmerged(entries []models.HistoryEntry, mergeID string) bool {
	for _, e := range entries {
		if e.Action == models.HistoryActionUnmerge && e.OriginalMergeID == mergeID {
			return true
		}
	}
	return false
}
