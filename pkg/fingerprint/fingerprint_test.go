package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestGenerateWithExclusions_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"name": "Jane", "tags": []any{"x", "y"}, "meta": map[string]any{"b": 1.0, "a": 2.0}}
	b := map[string]any{"meta": map[string]any{"a": 2.0, "b": 1.0}, "tags": []any{"x", "y"}, "name": "Jane"}
	assert.Equal(t, GenerateWithExclusions(a, nil), GenerateWithExclusions(b, nil))

	c := map[string]any{"name": "Jane", "tags": []any{"y", "x"}, "meta": map[string]any{"b": 1.0, "a": 2.0}}
	assert.NotEqual(t, GenerateWithExclusions(a, nil), GenerateWithExclusions(c, nil), "list order is significant")
}

func TestRecord_IgnoresHistoryField(t *testing.T) {
	rec := models.Record{ID: "rec1", Fields: models.Fields{
		"Name":          models.Text("Jane Doe"),
		"Merge History": models.Text("[]"),
	}}
	updated := models.Record{ID: "rec1", Fields: rec.Fields.Clone()}
	updated.Fields["Merge History"] = models.Text(`[{"merge_id":"merge_1"}]`)

	assert.Equal(t, Record(rec, "Merge History"), Record(updated, "Merge History"))
	assert.NotEqual(t, Record(rec, ""), Record(updated, ""))

	updated.Fields["Name"] = models.Text("Jane Q Doe")
	assert.True(t, HasChanged(Record(rec, "Merge History"), Record(updated, "Merge History")))
}

func TestPairAndGroup(t *testing.T) {
	assert.Equal(t, Pair("a", "b"), Pair("b", "a"))
	assert.NotEqual(t, Pair("a", "b"), Pair("a", "c"))
	assert.Contains(t, Pair("a", "b"), "cand_")

	assert.Equal(t, Group([]string{"c", "a", "b"}), Group([]string{"b", "c", "a"}))
	assert.NotEqual(t, Group([]string{"a", "b"}), Group([]string{"a", "b", "c"}))
}
