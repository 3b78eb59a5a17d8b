package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestMergeParams(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	params := mergeParams(&models.MergePayload{
		MergeID:         "merge_1",
		SurvivorID:      "rec1",
		RecordsToDelete: []string{"rec2", "rec3"},
		HistoryEntry:    models.HistoryEntry{Timestamp: at, PerformedBy: "user_1"},
	})

	assert.Equal(t, "rec1", params["survivor_id"])
	assert.Equal(t, []any{"rec2", "rec3"}, params["merged_ids"])
	assert.Equal(t, "2024-05-01T12:00:00Z", params["at"])
	assert.Equal(t, "user_1", params["performed_by"])
}

func TestUnmergeParams_SkipsRecordsNotRecreated(t *testing.T) {
	params := unmergeParams(&models.UnmergePayload{
		UnmergeID:       "unmerge_1",
		OriginalMergeID: "merge_1",
		SurvivorID:      "rec1",
		UnmergeHistoryEntry: models.HistoryEntry{
			MergedRecords: []models.MergedRecordSnapshot{
				{OriginalRecordID: "rec2", RecreatedID: "rec9"},
				{OriginalRecordID: "rec3"},
			},
		},
	})

	assert.Equal(t, "merge_1", params["merge_id"])
	assert.Equal(t, []any{map[string]any{"original_id": "rec2", "new_id": "rec9"}}, params["recreated"])
}

func TestToEdge(t *testing.T) {
	edge := toEdge("rec2", "rec1", RelMergedInto, map[string]any{
		"merge_id":     "merge_1",
		"at":           "2024-05-01T12:00:00Z",
		"performed_by": "user_1",
		"unmerged":     true,
		"unmerge_id":   "unmerge_1",
	})

	assert.Equal(t, LineageEdge{
		From:        "rec2",
		To:          "rec1",
		Type:        RelMergedInto,
		MergeID:     "merge_1",
		UnmergeID:   "unmerge_1",
		At:          time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		PerformedBy: "user_1",
		Unmerged:    true,
	}, edge)

	empty := toEdge("a", "b", RelRecreatedFrom, asProps(nil))
	assert.True(t, empty.At.IsZero())
	assert.False(t, empty.Unmerged)
}
