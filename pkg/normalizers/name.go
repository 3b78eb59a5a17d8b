package normalizers

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Ramsey-B/clover/pkg/models"
)

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mx": true, "dr": true,
	"prof": true, "rev": true, "fr": true, "sir": true, "madam": true, "hon": true,
	"capt": true, "sgt": true, "lt": true, "col": true, "gen": true,
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
	"phd": true, "md": true, "dds": true, "dvm": true, "esq": true,
	"cpa": true, "rn": true, "np": true, "pa": true,
}

// NormalizeName produces the comparable form of a person's name:
//   - strips accents, lowercases and drops punctuation
//   - reorders "Last, First [Middle]" (exactly one comma) to "First [Middle] Last"
//   - removes honorific and suffix tokens, reporting them separately
//   - sorts the remaining tokens into Canonical
//   - expands one token at a time through the nickname table into Variants
func NormalizeName(full string) models.NormalizedName {
	s := strings.ToLower(StripAccents(strings.TrimSpace(full)))
	if s == "" {
		return models.NormalizedName{Variants: []string{}, Parts: []string{}}
	}

	if strings.Count(s, ",") == 1 {
		idx := strings.Index(s, ",")
		last, rest := s[:idx], s[idx+1:]
		if !onlyAffixes(tokenize(rest)) && len(tokenize(last)) > 0 {
			s = rest + " " + last
		}
	}

	result := models.NormalizedName{Parts: []string{}}
	for _, tok := range tokenize(s) {
		switch {
		case honorifics[tok]:
			result.Honorifics = append(result.Honorifics, tok)
		case suffixes[tok]:
			result.Suffixes = append(result.Suffixes, tok)
		default:
			result.Parts = append(result.Parts, tok)
		}
	}

	sorted := append([]string{}, result.Parts...)
	sort.Strings(sorted)
	result.Canonical = strings.Join(sorted, " ")
	result.Variants = nameVariants(sorted)
	return result
}

// tokenize splits on whitespace, commas and punctuation. Apostrophes are
// dropped so "O'Brien" stays one token.
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func onlyAffixes(tokens []string) bool {
	for _, t := range tokens {
		if !honorifics[t] && !suffixes[t] {
			return false
		}
	}
	return true
}

// nameVariants substitutes one token at a time, so the output is bounded by
// tokens x nicknames-per-token rather than their cross product. The
// canonical form is always a member.
func nameVariants(sortedParts []string) []string {
	if len(sortedParts) == 0 {
		return []string{}
	}

	seen := map[string]bool{strings.Join(sortedParts, " "): true}
	for i, tok := range sortedParts {
		for _, alt := range Nicknames(tok) {
			variant := append([]string{}, sortedParts...)
			variant[i] = alt
			sort.Strings(variant)
			seen[strings.Join(variant, " ")] = true
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FullName composes the name used for matching from first/last fields,
// falling back to a single full-name value
func FullName(first, last, full string) string {
	composed := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if composed != "" {
		return composed
	}
	return strings.TrimSpace(full)
}
