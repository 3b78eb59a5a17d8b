package matching

import (
	"sort"
	"strings"
)

// trigramIndex is an in-memory approximate text index. Similarity is the Dice
// coefficient over padded word trigrams, scaled to 0-100.
type trigramIndex struct {
	postings map[string][]int
	sizes    map[int]int
}

func newTrigramIndex() *trigramIndex {
	return &trigramIndex{
		postings: make(map[string][]int),
		sizes:    make(map[int]int),
	}
}

func (idx *trigramIndex) add(id int, text string) {
	grams := trigrams(text)
	if len(grams) == 0 {
		return
	}
	idx.sizes[id] = len(grams)
	for _, g := range grams {
		idx.postings[g] = append(idx.postings[g], id)
	}
}

// search returns ids whose similarity to text is at least threshold, in ascending id order
func (idx *trigramIndex) search(text string, threshold int) []int {
	grams := trigrams(text)
	if len(grams) == 0 {
		return nil
	}

	shared := make(map[int]int)
	for _, g := range grams {
		for _, id := range idx.postings[g] {
			shared[id]++
		}
	}

	out := make([]int, 0)
	for id, n := range shared {
		if diceScore(n, len(grams), idx.sizes[id]) >= threshold {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func diceScore(shared, a, b int) int {
	if a+b == 0 {
		return 0
	}
	return 200 * shared / (a + b)
}

// trigrams returns the distinct trigrams of each word, padded with two
// leading spaces and one trailing space
func trigrams(text string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		r := []rune("  " + word + " ")
		for i := 0; i+3 <= len(r); i++ {
			g := string(r[i : i+3])
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}
