// Package grouping coalesces pairwise candidates into merge groups
package grouping

import (
	"sort"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/models"
)

// group is one connected component under construction. seq is the index of
// the earliest candidate that touched it and fixes the output order.
type group struct {
	seq        int
	order      []string
	records    map[string]models.RankedRecord
	matches    []models.MatchCandidate
	bestTier   models.Tier
	confidence int
}

func newGroup(seq int) *group {
	return &group{
		seq:      seq,
		records:  make(map[string]models.RankedRecord),
		bestTier: models.TierInvestigate,
	}
}

func (g *group) addRecord(r models.RankedRecord) {
	if _, ok := g.records[r.Record.ID]; ok {
		return
	}
	g.records[r.Record.ID] = r
	g.order = append(g.order, r.Record.ID)
}

func (g *group) addMatch(c models.MatchCandidate) {
	g.matches = append(g.matches, c)
	g.bestTier = min(g.bestTier, c.Tier)
	g.confidence = max(g.confidence, c.Confidence)
}

// absorb moves every record and match of other into g
func (g *group) absorb(other *group) {
	for _, id := range other.order {
		g.addRecord(other.records[id])
	}
	for _, m := range other.matches {
		g.addMatch(m)
	}
	g.seq = min(g.seq, other.seq)
}

// GroupCandidates returns the connected components of the candidate graph.
// Membership is a flat record-id to group map; a union re-points every member
// of the smaller group at the larger one. Members are ordered by quality
// score, highest first, and the first is the survivor. Groups come out in the
// order their first candidate appeared.
func GroupCandidates(candidates []models.MatchCandidate) []models.MergeGroup {
	membership := make(map[string]*group)

	for i, c := range candidates {
		a, b := c.Survivor.Record.ID, c.Merged.Record.ID
		ga, gb := membership[a], membership[b]

		switch {
		case ga == nil && gb == nil:
			g := newGroup(i)
			g.addRecord(c.Survivor)
			g.addRecord(c.Merged)
			g.addMatch(c)
			membership[a], membership[b] = g, g
		case ga != nil && gb == nil:
			ga.addRecord(c.Merged)
			ga.addMatch(c)
			membership[b] = ga
		case ga == nil && gb != nil:
			gb.addRecord(c.Survivor)
			gb.addMatch(c)
			membership[a] = gb
		case ga == gb:
			ga.addMatch(c)
		default:
			keep, gone := ga, gb
			if len(gb.order) > len(ga.order) {
				keep, gone = gb, ga
			}
			keep.absorb(gone)
			for _, id := range gone.order {
				membership[id] = keep
			}
			keep.addMatch(c)
		}
	}

	distinct := make([]*group, 0)
	seen := make(map[*group]bool)
	for _, g := range membership {
		if !seen[g] {
			seen[g] = true
			distinct = append(distinct, g)
		}
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i].seq < distinct[j].seq })

	return ectolinq.Map(distinct, func(g *group) models.MergeGroup { return g.build() })
}

func (g *group) build() models.MergeGroup {
	records := make([]models.RankedRecord, 0, len(g.order))
	for _, id := range g.order {
		records = append(records, g.records[id])
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })

	ids := ectolinq.Map(records, func(r models.RankedRecord) string { return r.Record.ID })
	return models.MergeGroup{
		ID:                fingerprint.Group(ids),
		Records:           records,
		Matches:           g.matches,
		Survivor:          records[0],
		ToMerge:           records[1:],
		BestTier:          g.bestTier,
		HighestConfidence: g.confidence,
	}
}
