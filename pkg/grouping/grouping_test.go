package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func ranked(id string, score int) models.RankedRecord {
	return models.RankedRecord{Record: models.Record{ID: id, Fields: models.Fields{}}, Score: score, Name: id}
}

func candidate(a, b models.RankedRecord, tier models.Tier, confidence int) models.MatchCandidate {
	return models.MatchCandidate{ID: a.Record.ID + "-" + b.Record.ID, Survivor: a, Merged: b, Tier: tier, Confidence: confidence}
}

func memberIDs(g models.MergeGroup) []string {
	out := make([]string, 0, len(g.Records))
	for _, r := range g.Records {
		out = append(out, r.Record.ID)
	}
	return out
}

func TestGroupCandidates_Transitive(t *testing.T) {
	a, b, c := ranked("A", 10), ranked("B", 30), ranked("C", 20)

	groups := GroupCandidates([]models.MatchCandidate{
		candidate(b, a, models.TierStrong, 90),
		candidate(b, c, models.TierPossible, 72),
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, []string{"B", "C", "A"}, memberIDs(g))
	assert.Equal(t, "B", g.Survivor.Record.ID)
	assert.Len(t, g.ToMerge, 2)
	assert.Len(t, g.Matches, 2)
	assert.Equal(t, models.TierStrong, g.BestTier)
	assert.Equal(t, 90, g.HighestConfidence)
}

func TestGroupCandidates_LongChain(t *testing.T) {
	ids := []string{"r1", "r2", "r3", "r4", "r5", "r6"}
	var candidates []models.MatchCandidate
	for i := 0; i+1 < len(ids); i++ {
		candidates = append(candidates, candidate(ranked(ids[i], i), ranked(ids[i+1], i+1), models.TierPossible, 70))
	}

	groups := GroupCandidates(candidates)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, ids, memberIDs(groups[0]))
	assert.Equal(t, "r6", groups[0].Survivor.Record.ID)
}

func TestGroupCandidates_UnionOfExistingGroups(t *testing.T) {
	a, b, c, d, e := ranked("A", 1), ranked("B", 2), ranked("C", 3), ranked("D", 4), ranked("E", 5)

	groups := GroupCandidates([]models.MatchCandidate{
		candidate(a, b, models.TierPossible, 71),
		candidate(c, d, models.TierDefinitive, 100),
		candidate(d, e, models.TierStrong, 88),
		candidate(b, c, models.TierInvestigate, 50),
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, []string{"E", "D", "C", "B", "A"}, memberIDs(g))
	assert.Len(t, g.Matches, 4)
	assert.Equal(t, models.TierDefinitive, g.BestTier)
	assert.Equal(t, 100, g.HighestConfidence)
}

func TestGroupCandidates_SameGroupAppendsMatch(t *testing.T) {
	a, b, c := ranked("A", 1), ranked("B", 2), ranked("C", 3)

	groups := GroupCandidates([]models.MatchCandidate{
		candidate(a, b, models.TierPossible, 70),
		candidate(b, c, models.TierPossible, 70),
		candidate(a, c, models.TierStrong, 86),
	})

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Records, 3)
	assert.Len(t, groups[0].Matches, 3)
}

func TestGroupCandidates_SeparateComponents(t *testing.T) {
	groups := GroupCandidates([]models.MatchCandidate{
		candidate(ranked("X", 5), ranked("Y", 1), models.TierPossible, 70),
		candidate(ranked("A", 5), ranked("B", 1), models.TierStrong, 90),
		candidate(ranked("Y", 1), ranked("Z", 9), models.TierPossible, 70),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"Z", "X", "Y"}, memberIDs(groups[0]))
	assert.Equal(t, []string{"A", "B"}, memberIDs(groups[1]))
	assert.NotEqual(t, groups[0].ID, groups[1].ID)
}

func TestGroupCandidates_StableIDs(t *testing.T) {
	a, b, c := ranked("A", 1), ranked("B", 2), ranked("C", 3)
	first := GroupCandidates([]models.MatchCandidate{candidate(a, b, models.TierPossible, 70), candidate(b, c, models.TierPossible, 70)})
	second := GroupCandidates([]models.MatchCandidate{candidate(c, b, models.TierPossible, 70), candidate(a, b, models.TierPossible, 70)})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestGroupCandidates_Empty(t *testing.T) {
	assert.Empty(t, GroupCandidates(nil))
}
