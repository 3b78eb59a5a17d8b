package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestParse(t *testing.T) {
	t.Run("empty values are an empty history", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "null", "[]"} {
			entries, err := Parse(raw)
			require.NoError(t, err, raw)
			assert.Empty(t, entries, raw)
			assert.NotNil(t, entries, raw)
		}
	})

	t.Run("standard array", func(t *testing.T) {
		entries, err := Parse(`[{"merge_id":"merge_1","timestamp":"2024-03-01T10:00:00Z","action":"merge","survivor_record_id":"rec1",
			"merged_records":[{"original_record_id":"rec2","field_snapshot":{"Name":"Jane","Visits":["v1"]},"linked_records":{"Visits":["v1"]}}],
			"field_decisions":{"Name":{"strategy":"auto","value":"Jane"}},"performed_by":"u1","notes":""}]`)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		e := entries[0]
		assert.Equal(t, "merge_1", e.MergeID)
		assert.Equal(t, models.HistoryActionMerge, e.Action)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), e.Timestamp.UTC())
		require.Len(t, e.MergedRecords, 1)
		assert.Equal(t, models.Text("Jane"), e.MergedRecords[0].FieldSnapshot["Name"])
		assert.Equal(t, []string{"v1"}, e.MergedRecords[0].LinkedRecords["Visits"])
		assert.Equal(t, models.ResolutionAuto, e.FieldDecisions["Name"].Strategy)
	})

	t.Run("legacy wrapped object", func(t *testing.T) {
		entries, err := Parse(`{"_merge_history":[{"merge_id":"merge_old","survivor_record_id":"rec1","merged_records":[]}]}`)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "merge_old", entries[0].MergeID)
		assert.Equal(t, models.HistoryActionMerge, entries[0].Action, "legacy entries are merges")
	})

	t.Run("malformed input fails open", func(t *testing.T) {
		for _, raw := range []string{`not json`, `[{"merge_id":`, `{"other":[]}`, `{"_merge_history":"x"}`, `42`} {
			entries, err := Parse(raw)
			assert.True(t, errors.IsMalformedHistory(err), raw)
			assert.NotNil(t, entries, raw)
			assert.Empty(t, entries, raw)
		}
	})
}

func TestSerialize_RoundTripsLegacy(t *testing.T) {
	entries, err := Parse(`{"_merge_history":[{"merge_id":"merge_old","action":"merge","survivor_record_id":"rec1"}]}`)
	require.NoError(t, err)

	raw, err := Serialize(entries)
	require.NoError(t, err)
	assert.Equal(t, byte('['), raw[0], "always written in the array shape")

	again, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "merge_old", again[0].MergeID)

	empty, err := Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestAppend_DoesNotModifyInput(t *testing.T) {
	base := make([]models.HistoryEntry, 1, 4)
	base[0] = models.HistoryEntry{MergeID: "merge_1", Action: models.HistoryActionMerge}

	first := Append(base, models.HistoryEntry{MergeID: "merge_2"})
	second := Append(base, models.HistoryEntry{MergeID: "merge_3"})

	assert.Len(t, base, 1)
	assert.Equal(t, "merge_2", first[1].MergeID)
	assert.Equal(t, "merge_3", second[1].MergeID)
}

func TestFindMergeAndIsUnmerged(t *testing.T) {
	entries := []models.HistoryEntry{
		{MergeID: "merge_1", Action: models.HistoryActionMerge},
		{MergeID: "unmerge_1", Action: models.HistoryActionUnmerge, OriginalMergeID: "merge_1"},
		{MergeID: "merge_2", Action: models.HistoryActionMerge},
	}

	e, ok := FindMerge(entries, "merge_2")
	assert.True(t, ok)
	assert.Equal(t, "merge_2", e.MergeID)

	_, ok = FindMerge(entries, "unmerge_1")
	assert.False(t, ok, "unmerge entries are not merges")

	assert.True(t, IsUnmerged(entries, "merge_1"))
	assert.False(t, IsUnmerged(entries, "merge_2"))
}
