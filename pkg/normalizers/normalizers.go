// Package normalizers converts raw field values into canonical comparable forms
package normalizers

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Ramsey-B/clover/pkg/errors"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// byName lists the normalizers a rules file may chain onto a field
var byName = map[string]Normalizer{
	"trim":          strings.TrimSpace,
	"lowercase":     strings.ToLower,
	"strip_accents": StripAccents,
	"digits":        DigitsOnly,
	"identifier":    NormalizeIdentifier,
	"phone":         NormalizePhone,
	"email":         NormalizeEmail,
	"address":       NormalizeAddress,
	"name":          canonicalName,
	"phonetic":      PhoneticCode,
}

func canonicalName(s string) string {
	return NormalizeName(s).Canonical
}

// Chain composes the named normalizers, applied left to right. Naming an
// unknown normalizer is a ConfigurationError.
func Chain(names ...string) (Normalizer, error) {
	fns := make([]Normalizer, 0, len(names))
	for _, name := range names {
		fn, ok := byName[name]
		if !ok {
			return nil, errors.NewConfigurationError("unknown normalizer %q", name)
		}
		fns = append(fns, fn)
	}
	return func(s string) string {
		for _, fn := range fns {
			s = fn(s)
		}
		return s
	}, nil
}

// ValidateChains checks every per-field chain of a rules file
func ValidateChains(chains map[string][]string) error {
	fields := make([]string, 0, len(chains))
	for field := range chains {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if len(chains[field]) == 0 {
			return errors.NewConfigurationError("normalizers for %q: empty chain", field)
		}
		if _, err := Chain(chains[field]...); err != nil {
			return errors.NewConfigurationError("normalizers for %q: %v", field, err)
		}
	}
	return nil
}

// StripAccents removes combining marks after canonical decomposition ("José" -> "Jose")
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizePhone removes all non-digit characters and drops a leading US
// country code from 11-digit numbers
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeIdentifier lowercases and keeps letters and digits, so
// "123-45-6789" and "123 45 6789" compare equal
func NormalizeIdentifier(s string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// addressAbbreviations maps whole words to their postal abbreviation
var addressAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"lane":      "ln",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"parkway":   "pkwy",
	"highway":   "hwy",
	"terrace":   "ter",
	"square":    "sq",
	"trail":     "trl",
	"apartment": "apt",
	"suite":     "ste",
	"building":  "bldg",
	"floor":     "fl",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
	"northeast": "ne",
	"northwest": "nw",
	"southeast": "se",
	"southwest": "sw",
}

// NormalizeAddress lowercases, strips accents and punctuation, and replaces
// street suffixes and directionals with their abbreviations as whole words
func NormalizeAddress(s string) string {
	s = strings.ToLower(StripAccents(s))

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cleaned.WriteRune(r)
		case r == '\'':
			// o'connor -> oconnor
		default:
			cleaned.WriteRune(' ')
		}
	}

	words := strings.Fields(cleaned.String())
	for i, w := range words {
		if abbr, ok := addressAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}
