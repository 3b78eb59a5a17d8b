package merging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/history"
	"github.com/Ramsey-B/clover/pkg/models"
)

// mergedSurvivor runs a merge of the fixture and returns the survivor as the
// store would hold it afterwards
func mergedSurvivor(t *testing.T) (models.Record, models.Record, *models.MergePayload) {
	t.Helper()
	survivor, toMerge := mergeFixture()
	res := ComputeFieldResolutions(survivor, toMerge, personSchema(), models.DefaultDedupConfig())
	p, err := BuildMergePayload(survivor, toMerge, res, personSchema(), fixedOptions())
	require.NoError(t, err)

	after := models.Record{ID: survivor.ID, Fields: survivor.Fields.Clone()}
	for k, v := range p.UpdateFields {
		after.Fields[k] = v
	}
	return after, toMerge[0], p
}

func TestBuildUnmergePayload_RoundTrip(t *testing.T) {
	after, original, merge := mergedSurvivor(t)
	schema := personSchema()

	p, err := BuildUnmergePayload(after, merge.MergeID, schema, fixedOptions())
	require.NoError(t, err)

	assert.Equal(t, merge.MergeID, p.OriginalMergeID)
	assert.Equal(t, "unmerge_id1", p.UnmergeID)
	assert.False(t, p.HistoryWasLossy)

	require.Len(t, p.RecordsToCreate, 1)
	created := p.RecordsToCreate[0]
	assert.Equal(t, original.ID, created.OriginalRecordID)
	for _, field := range original.Fields.Keys() {
		if schema.IsComputed(field) {
			assert.NotContains(t, created.Fields, field)
			continue
		}
		assert.True(t, original.Fields[field].Equal(created.Fields[field]), field)
	}

	assert.Equal(t, []string{"v1"}, p.SurvivorUpdates["Visits"].Items(), "links brought by the subsumed record are removed")

	entries, err := history.ParseValue(p.SurvivorUpdates["Merge History"])
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, merge.HistoryEntry.MergeID, entries[0].MergeID)
	assert.Equal(t, models.HistoryActionMerge, entries[0].Action)
	assert.Len(t, entries[0].MergedRecords, 1)
	assert.NotEmpty(t, entries[0].MergedRecords[0].FieldSnapshot, "the original entry is left as written")

	unmerge := entries[1]
	assert.Equal(t, models.HistoryActionUnmerge, unmerge.Action)
	assert.Equal(t, merge.MergeID, unmerge.OriginalMergeID)
	require.Len(t, unmerge.MergedRecords, 1)
	assert.Equal(t, original.ID, unmerge.MergedRecords[0].OriginalRecordID)
}

func TestBuildUnmergePayload_KeepsLinksTheSurvivorHad(t *testing.T) {
	survivor := rec("rec1", models.Fields{"Visits": models.RefList("v1", "v2")})
	toMerge := []models.Record{rec("rec2", models.Fields{"Visits": models.RefList("v2", "v3")})}
	res := ComputeFieldResolutions(survivor, toMerge, personSchema(), models.DefaultDedupConfig())
	merge, err := BuildMergePayload(survivor, toMerge, res, personSchema(), fixedOptions())
	require.NoError(t, err)

	after := models.Record{ID: "rec1", Fields: models.Fields{
		"Visits":        models.RefList("v1", "v2", "v3", "v4"),
		"Merge History": merge.UpdateFields["Merge History"],
	}}

	p, err := BuildUnmergePayload(after, merge.MergeID, personSchema(), fixedOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v4"}, p.SurvivorUpdates["Visits"].Items())
}

func TestBuildUnmergePayload_DropsFieldsMissingFromSchema(t *testing.T) {
	after, _, merge := mergedSurvivor(t)
	schema := personSchema()
	delete(schema.Fields, "Notes")

	p, err := BuildUnmergePayload(after, merge.MergeID, schema, fixedOptions())
	require.NoError(t, err)
	assert.NotContains(t, p.RecordsToCreate[0].Fields, "Notes")
	assert.Contains(t, p.RecordsToCreate[0].Fields, "Email")
}

func TestBuildUnmergePayload_Errors(t *testing.T) {
	after, _, merge := mergedSurvivor(t)

	t.Run("unknown merge", func(t *testing.T) {
		_, err := BuildUnmergePayload(after, "merge_missing", personSchema(), fixedOptions())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("no history", func(t *testing.T) {
		bare := rec("rec1", models.Fields{"Name": models.Text("Jane")})
		_, err := BuildUnmergePayload(bare, merge.MergeID, personSchema(), fixedOptions())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("malformed history", func(t *testing.T) {
		broken := rec("rec1", models.Fields{"Merge History": models.Text("{oops")})
		_, err := BuildUnmergePayload(broken, merge.MergeID, personSchema(), fixedOptions())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("wrong survivor", func(t *testing.T) {
		moved := models.Record{ID: "rec9", Fields: after.Fields}
		_, err := BuildUnmergePayload(moved, merge.MergeID, personSchema(), fixedOptions())
		assert.True(t, errors.IsPrecondition(err))
	})

	t.Run("already unmerged", func(t *testing.T) {
		p, err := BuildUnmergePayload(after, merge.MergeID, personSchema(), fixedOptions())
		require.NoError(t, err)

		again := models.Record{ID: after.ID, Fields: after.Fields.Clone()}
		for k, v := range p.SurvivorUpdates {
			again.Fields[k] = v
		}
		_, err = BuildUnmergePayload(again, merge.MergeID, personSchema(), fixedOptions())
		assert.True(t, errors.IsPrecondition(err))
	})
}

func TestRecordRecreated(t *testing.T) {
	after, original, merge := mergedSurvivor(t)

	p, err := BuildUnmergePayload(after, merge.MergeID, personSchema(), fixedOptions())
	require.NoError(t, err)
	before := p.SurvivorUpdates

	require.NoError(t, RecordRecreated(p, after, map[string]string{original.ID: "rec2_new"}, fixedOptions()))
	assert.Equal(t, "rec2_new", p.UnmergeHistoryEntry.MergedRecords[0].RecreatedID)

	entries, err := history.ParseValue(p.SurvivorUpdates["Merge History"])
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rec2_new", entries[1].MergedRecords[0].RecreatedID)

	assert.Equal(t, p.SurvivorUpdates["Visits"], before["Visits"])
	assert.NotEqual(t, before["Merge History"], p.SurvivorUpdates["Merge History"], "the earlier update map is not modified")
}

func TestBuildUnmergePayload_RestoresLinksDeclaredOnlyInConfig(t *testing.T) {
	survivor, toMerge := mergeFixture()
	schema := models.Schema{TableName: "People"}
	cfg := models.DefaultDedupConfig()
	cfg.LinkFields = []string{"Visits"}

	res := ComputeFieldResolutions(survivor, toMerge, schema, cfg)
	merge, err := BuildMergePayload(survivor, toMerge, res, schema, fixedOptions())
	require.NoError(t, err)

	after := models.Record{ID: survivor.ID, Fields: survivor.Fields.Clone()}
	for k, v := range merge.UpdateFields {
		after.Fields[k] = v
	}

	p, err := BuildUnmergePayload(after, merge.MergeID, schema, fixedOptions())
	require.NoError(t, err)
	require.Len(t, p.RecordsToCreate, 1)

	created := p.RecordsToCreate[0].Fields
	assert.Equal(t, models.KindRefList, created["Visits"].Kind())
	assert.Equal(t, []string{"v2"}, created["Visits"].Items())
	assert.Equal(t, models.KindText, created["Notes"].Kind())
	assert.True(t, toMerge[0].Fields["Visits"].Equal(created["Visits"]))
}

func TestBuildUnmergePayload_ConfigLinkFieldHeldAsList(t *testing.T) {
	survivor := rec("rec1", models.Fields{"Name": models.Text("Jane Doe"), "Visits": models.StringList("v1")})
	other := rec("rec2", models.Fields{"Name": models.Text("Jane Doe"), "Visits": models.StringList("v2", "v3")})
	schema := models.Schema{TableName: "People"}
	cfg := models.DefaultDedupConfig()
	cfg.LinkFields = []string{"Visits"}

	res := ComputeFieldResolutions(survivor, []models.Record{other}, schema, cfg)
	merge, err := BuildMergePayload(survivor, []models.Record{other}, res, schema, fixedOptions())
	require.NoError(t, err)
	require.Len(t, merge.HistoryEntry.MergedRecords, 1)
	assert.Equal(t, map[string][]string{"Visits": {"v2", "v3"}}, merge.HistoryEntry.MergedRecords[0].LinkedRecords)

	after := models.Record{ID: survivor.ID, Fields: survivor.Fields.Clone()}
	for k, v := range merge.UpdateFields {
		after.Fields[k] = v
	}
	p, err := BuildUnmergePayload(after, merge.MergeID, schema, fixedOptions())
	require.NoError(t, err)
	require.Len(t, p.RecordsToCreate, 1)

	visits := p.RecordsToCreate[0].Fields["Visits"]
	assert.Equal(t, models.KindRefList, visits.Kind())
	assert.Equal(t, []string{"v2", "v3"}, visits.Items())
}
