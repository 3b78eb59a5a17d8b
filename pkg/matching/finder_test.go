package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

func pairIDs(c models.MatchCandidate) [2]string {
	a, b := c.Survivor.Record.ID, c.Merged.Record.ID
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func TestFindDuplicateCandidates_NicknameAndPhone(t *testing.T) {
	f := NewFinder(models.DefaultDedupConfig())
	records := []models.Record{
		record("1", "Phone", "(615) 555-0100", "Name", "Bob Smith"),
		record("2", "Phone", "615-555-0100", "Name", "Robert Smith"),
		record("3", "Name", "Alice Walker"),
	}

	got, err := f.FindDuplicateCandidates(records)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, [2]string{"1", "2"}, pairIDs(got[0]))
	assert.Equal(t, models.TierDefinitive, got[0].Tier)
	assert.Contains(t, got[0].Reasons, "Phone exact match")
}

func TestFindDuplicateCandidates_KeepsConflicts(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.UniqueIDFields = []string{"SSN"}
	f := NewFinder(cfg)

	got, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "SSN", "123-45-6789", "Name", "Jane Doe"),
		record("b", "SSN", "987-65-4321", "Name", "Jane Doe"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsConflict)
	assert.Equal(t, models.TierInvestigate, got[0].Tier)
}

func TestFindDuplicateCandidates_IdentifierBuckets(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.UniqueIDFields = []string{"Member ID"}
	f := NewFinder(cfg)

	got, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "Member ID", "M-100", "Name", "Jane Doe"),
		record("b", "Member ID", "m100", "Name", "Jane Whitfield-Morris"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TierDefinitive, got[0].Tier)
}

func TestFindDuplicateCandidates_FuzzyAcrossBuckets(t *testing.T) {
	f := NewFinder(models.DefaultDedupConfig())

	got, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "Name", "Jonathon Smith"),
		record("b", "Name", "Jonathan Smith"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TierStrong, got[0].Tier)
	assert.Equal(t, 93, got[0].Confidence)
}

func TestFindDuplicateCandidates_ScoresEachPairOnce(t *testing.T) {
	f := NewFinder(models.DefaultDedupConfig())

	got, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "Name", "Jane Doe"),
		record("b", "Name", "Doe, Jane"),
		record("c", "Name", "Jane Doe"),
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	seen := map[[2]string]bool{}
	for _, c := range got {
		assert.False(t, seen[pairIDs(c)], "duplicate pair %v", pairIDs(c))
		seen[pairIDs(c)] = true
	}
}

func TestFindDuplicateCandidates_SurvivorIsHigherQuality(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.LinkFields = []string{"Visits"}
	f := NewFinder(cfg)

	sparse := record("sparse", "Name", "Jane Doe")
	rich := record("rich", "Name", "Jane Doe", "Phone", "6155550100")
	rich.Fields["Visits"] = models.RefList("v1", "v2")

	got, err := f.FindDuplicateCandidates([]models.Record{sparse, rich})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rich", got[0].Survivor.Record.ID)
	assert.Equal(t, "sparse", got[0].Merged.Record.ID)
	assert.NotEmpty(t, got[0].Survivor.Fingerprint)

	t.Run("ties keep the first encountered", func(t *testing.T) {
		got, err := f.FindDuplicateCandidates([]models.Record{
			record("first", "Name", "Jane Doe"),
			record("second", "Name", "Jane Doe"),
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Survivor.Record.ID)
	})
}

func TestFindDuplicateCandidates_SortedAndDeterministic(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.UniqueIDFields = []string{"SSN"}
	f := NewFinder(cfg)

	records := []models.Record{
		record("1", "Name", "Jana Dow"),
		record("2", "Name", "Jane Doe"),
		record("3", "SSN", "1", "Name", "Carl Weathers"),
		record("4", "SSN", "2", "Name", "Carl Weathers"),
		record("5", "Name", "Bob Smith"),
		record("6", "Name", "Robert Smith"),
		record("7", "Name", "Jonathon Smith"),
		record("8", "Name", "Jonathan Smith"),
		record("9", "Name", "Smith, Bob"),
	}

	first, err := f.FindDuplicateCandidates(records)
	require.NoError(t, err)
	second, err := f.FindDuplicateCandidates(records)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.Tier == cur.Tier {
			assert.GreaterOrEqual(t, prev.Confidence, cur.Confidence)
		} else {
			assert.Less(t, prev.Tier, cur.Tier)
		}
	}
}

func TestFindDuplicateCandidates_RequiresMatchFields(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.FullNameField = ""
	f := NewFinder(cfg)

	_, err := f.FindDuplicateCandidates([]models.Record{record("a"), record("b")})
	assert.True(t, errors.IsConfiguration(err))
}

func TestFindDuplicateCandidates_ReportsProgress(t *testing.T) {
	var updates []models.ScanProgress
	f := NewFinder(models.DefaultDedupConfig(),
		WithObserver(ProgressFunc(func(p models.ScanProgress) { updates = append(updates, p) })),
		WithProgressInterval(1),
	)

	_, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "Name", "Jane Doe"),
		record("b", "Name", "Jane Doe"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, updates)

	last := updates[len(updates)-1]
	assert.Equal(t, models.ScanPhaseFuzzy, last.Phase)
	assert.Equal(t, last.Total, last.Processed)
	assert.Equal(t, 1, last.Candidates)
}

func TestFindCrossCandidates(t *testing.T) {
	f := NewFinder(models.DefaultDedupConfig())

	left := []models.Record{record("l1", "Name", "Jane Doe"), record("l2", "Name", "Jane Doe")}
	right := []models.Record{record("r1", "Name", "Jane Doe"), record("r2", "Name", "Doe, Jane")}

	got, err := f.FindCrossCandidates(left, right)
	require.NoError(t, err)

	pairs := make([][2]string, 0, len(got))
	for _, c := range got {
		pairs = append(pairs, pairIDs(c))
	}
	assert.ElementsMatch(t, [][2]string{{"l1", "r1"}, {"l1", "r2"}, {"l2", "r1"}, {"l2", "r2"}}, pairs)

	t.Run("same id in both sources is still a pair", func(t *testing.T) {
		got, err := f.FindCrossCandidates(
			[]models.Record{record("rec1", "Name", "Jane Doe")},
			[]models.Record{record("rec1", "Name", "Jane Doe")},
		)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestCommonFields(t *testing.T) {
	people := models.Schema{TableName: "People", Fields: map[string]models.FieldInfo{
		"Name":     {Type: models.FieldTypeText},
		"Email":    {Type: models.FieldTypeEmail},
		"Age":      {Type: models.FieldTypeFormula},
		"Visits":   {Type: models.FieldTypeLink},
		"Internal": {Type: models.FieldTypeText},
	}}
	contacts := models.Schema{TableName: "Contacts", Fields: map[string]models.FieldInfo{
		"Name":   {Type: models.FieldTypeText},
		"Email":  {Type: models.FieldTypeEmail},
		"Age":    {Type: models.FieldTypeNumber},
		"Visits": {Type: models.FieldTypeLink},
	}}

	got, err := CommonFields(people, contacts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Name", "Visits"}, got)

	_, err = CommonFields(people, models.Schema{TableName: "Empty"})
	assert.True(t, errors.IsConfiguration(err))
}

func TestFindDuplicateCandidates_IdentifierChain(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.UniqueIDFields = []string{"Member"}
	cfg.Normalizers = map[string][]string{"Member": {"trim", "digits"}}
	f := NewFinder(cfg)

	got, err := f.FindDuplicateCandidates([]models.Record{
		record("a", "Member", "M-0042", "Name", "Jane Doe"),
		record("b", "Member", " 0042", "Name", "Quin Omega"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TierDefinitive, got[0].Tier)
}

func TestFindDuplicateCandidates_UnknownNormalizer(t *testing.T) {
	cfg := models.DefaultDedupConfig()
	cfg.Normalizers = map[string][]string{"Phone": {"no_such_normalizer"}}

	_, err := NewFinder(cfg).FindDuplicateCandidates([]models.Record{record("a", "Name", "Jane Doe")})
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewFinder(cfg).FindCrossCandidates(nil, nil)
	assert.True(t, errors.IsConfiguration(err))
}
