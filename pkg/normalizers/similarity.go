package normalizers

import (
	"math"
	"strings"
	"unicode"

	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	variantScore      = 95
	sharedPartsScore  = 85
	minSharedPartsLen = 2
)

// LevenshteinDistance calculates the edit distance between two strings, counting runes
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	prevRow := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(rb)]
}

// StringSimilarity maps edit distance onto 0-100. Two empty strings are
// identical; one empty string matches nothing.
func StringSimilarity(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 100
	}
	if la == 0 || lb == 0 {
		return 0
	}
	d := LevenshteinDistance(a, b)
	return int(math.Round((1 - float64(d)/float64(max(la, lb))) * 100))
}

// AreNamesSimilar compares two normalized names, trying in order: identical
// canonical forms, a shared nickname variant, edit-distance similarity at or
// above threshold, and finally at least two shared tokens that cover the
// shorter name.
func AreNamesSimilar(a, b models.NormalizedName, threshold int) models.NameMatch {
	if a.Canonical == "" || b.Canonical == "" {
		return models.NameMatch{Reason: models.NameMatchNone}
	}

	if a.Canonical == b.Canonical {
		return models.NameMatch{Match: true, Score: 100, Reason: models.NameMatchExactCanonical}
	}

	if variantsIntersect(a.Variants, b.Variants) {
		return models.NameMatch{Match: true, Score: variantScore, Reason: models.NameMatchNicknameVariant}
	}

	fuzzy := StringSimilarity(a.Canonical, b.Canonical)
	if fuzzy >= threshold {
		return models.NameMatch{Match: true, Score: fuzzy, Reason: models.NameMatchFuzzy}
	}

	shared := sharedParts(a.Parts, b.Parts)
	if shared >= minSharedPartsLen && shared >= min(len(a.Parts), len(b.Parts)) {
		return models.NameMatch{Match: true, Score: sharedPartsScore, Reason: models.NameMatchSharedParts}
	}

	return models.NameMatch{Score: fuzzy, Reason: models.NameMatchNone}
}

func variantsIntersect(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func sharedParts(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	count := 0
	for _, p := range b {
		if set[p] {
			count++
			delete(set, p)
		}
	}
	return count
}

// PhoneticCode returns the four character Soundex code of the first word.
// Leading non-letters are skipped; an input without letters yields "".
func PhoneticCode(s string) string {
	upper := strings.ToUpper(StripAccents(s))

	var result strings.Builder
	var prevCode byte
	for _, r := range upper {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			if result.Len() > 0 && r == ' ' {
				break
			}
			continue
		}
		code := soundexCode(r)
		if result.Len() == 0 {
			result.WriteRune(r)
			prevCode = code
			continue
		}
		// H and W do not separate letters with the same code
		if r == 'H' || r == 'W' {
			continue
		}
		if code != '0' && code != prevCode {
			result.WriteByte(code)
			if result.Len() == 4 {
				break
			}
		}
		prevCode = code
	}

	if result.Len() == 0 {
		return ""
	}
	for result.Len() < 4 {
		result.WriteByte('0')
	}
	return result.String()
}

func soundexCode(r rune) byte {
	switch r {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return '0'
	}
}
