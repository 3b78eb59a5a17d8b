// Package fingerprint derives deterministic hashes for records, candidate
// pairs and merge groups
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

const shortLen = 16

// GenerateWithExclusions creates a deterministic fingerprint for plain field
// data, ignoring the named top-level fields. The fingerprint is a SHA256 hash
// of the canonicalized JSON.
func GenerateWithExclusions(data map[string]any, exclude map[string]bool) string {
	var b strings.Builder
	canonicalizeMap(&b, data, exclude)
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Record fingerprints a record's fields. The history field is excluded so
// appending audit entries alone does not count as a content change.
func Record(rec models.Record, historyField string) string {
	var exclude map[string]bool
	if historyField != "" {
		exclude = map[string]bool{historyField: true}
	}
	return GenerateWithExclusions(rec.Fields.Plain(), exclude)
}

// Pair returns the id of an unordered pair of records
func Pair(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "cand_" + short(a+"\x00"+b)
}

// Group returns the id of a set of records, independent of member order
func Group(ids []string) string {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	return "grp_" + short(strings.Join(sorted, "\x00"))
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

func short(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:shortLen]
}

func canonicalize(b *strings.Builder, data any) {
	switch v := data.(type) {
	case map[string]any:
		canonicalizeMap(b, v, nil)
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, item)
		}
		b.WriteByte(']')
	default:
		raw, _ := json.Marshal(v)
		b.Write(raw)
	}
}

func canonicalizeMap(b *strings.Builder, m map[string]any, exclude map[string]bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !exclude[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		b.Write(keyJSON)
		b.WriteByte(':')
		canonicalize(b, m[k])
	}
	b.WriteByte('}')
}
