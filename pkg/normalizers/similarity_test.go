package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"josé", "jose", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
		})
	}
}

func TestStringSimilarity(t *testing.T) {
	t.Run("empty handling", func(t *testing.T) {
		assert.Equal(t, 100, StringSimilarity("", ""))
		assert.Equal(t, 0, StringSimilarity("a", ""))
		assert.Equal(t, 0, StringSimilarity("", "a"))
	})

	t.Run("rounds the distance ratio", func(t *testing.T) {
		// kitten/sitting: 1 - 3/7 = 0.571
		assert.Equal(t, 57, StringSimilarity("kitten", "sitting"))
		assert.Equal(t, 100, StringSimilarity("same", "same"))
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"jon smith", "john smith"},
			{"alice", "alicia"},
			{"", "x"},
			{"abcdef", "fedcba"},
			{"straße", "strasse"},
		}
		for _, p := range pairs {
			assert.Equal(t, StringSimilarity(p[0], p[1]), StringSimilarity(p[1], p[0]), p)
		}
	})
}

func TestAreNamesSimilar(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		match  bool
		score  int
		reason models.NameMatchReason
	}{
		{"reordered", "Smith, Jane", "Jane Smith", true, 100, models.NameMatchExactCanonical},
		{"nickname", "Bob Smith", "Robert Smith", true, 95, models.NameMatchNicknameVariant},
		{"typo", "Jonathon Smith", "Jonathan Smith", true, 93, models.NameMatchFuzzy},
		{"middle name dropped", "Mary Ann Elizabeth Jones", "Mary Jones", true, 85, models.NameMatchSharedParts},
		{"different people", "Jane Doe", "Carl Weathers", false, 0, models.NameMatchNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AreNamesSimilar(NormalizeName(tt.a), NormalizeName(tt.b), 75)
			assert.Equal(t, tt.match, got.Match)
			assert.Equal(t, tt.reason, got.Reason)
			if tt.match {
				assert.Equal(t, tt.score, got.Score)
			}
		})
	}

	t.Run("no match still reports fuzzy score", func(t *testing.T) {
		got := AreNamesSimilar(NormalizeName("Ann Lee"), NormalizeName("Anne Leigh"), 90)
		assert.False(t, got.Match)
		assert.Equal(t, StringSimilarity("ann lee", "anne leigh"), got.Score)
	})

	t.Run("empty names never match", func(t *testing.T) {
		got := AreNamesSimilar(NormalizeName(""), NormalizeName(""), 75)
		assert.False(t, got.Match)
	})
}

func TestPhoneticCode(t *testing.T) {
	tests := map[string]string{
		"Robert":       "R163",
		"Rupert":       "R163",
		"Tymczak":      "T522",
		"Ashcraft":     "A261",
		"Lee":          "L000",
		"  42 Pfister": "P236",
		"":             "",
		"123":          "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, PhoneticCode(in))
		})
	}
}
