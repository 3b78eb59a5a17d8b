package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testConfig() models.DedupConfig {
	cfg := models.DefaultDedupConfig()
	cfg.UniqueIDFields = []string{"SSN"}
	cfg.AddressFields = []string{"Street", "City"}
	cfg.LinkFields = []string{"Visits"}
	return cfg
}

func TestRanker_MoreLinksNeverScoresLower(t *testing.T) {
	r := NewRanker(testConfig())

	base := models.Record{ID: "a", Fields: models.Fields{"Name": models.Text("Jane Doe")}}
	prev := r.Score(base)
	for i := 1; i <= 5; i++ {
		ids := make([]string, i)
		for j := range ids {
			ids[j] = string(rune('a' + j))
		}
		rec := models.Record{ID: "a", Fields: base.Fields.Clone()}
		rec.Fields["Visits"] = models.RefList(ids...)
		score := r.Score(rec)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestRanker_FillingFieldsNeverScoresLower(t *testing.T) {
	r := NewRanker(testConfig())

	fields := models.Fields{}
	additions := []struct {
		name  string
		value models.Value
	}{
		{"Name", models.Text("Jane Doe")},
		{"Phone", models.Text("615-555-0100")},
		{"Street", models.Text("1 Main St")},
		{"Notes", models.Text("called")},
		{"SSN", models.Text("123-45-6789")},
		{"Tags", models.StringList("vip")},
	}

	prev := r.Score(models.Record{ID: "a", Fields: fields})
	for _, add := range additions {
		fields[add.name] = add.value
		score := r.Score(models.Record{ID: "a", Fields: fields.Clone()})
		assert.GreaterOrEqual(t, score, prev, add.name)
		prev = score
	}
}

func TestRanker_IgnoresEmptyAndHistory(t *testing.T) {
	r := NewRanker(testConfig())

	bare := models.Record{ID: "a", Fields: models.Fields{"Name": models.Text("Jane")}}
	padded := models.Record{ID: "b", Fields: models.Fields{
		"Name":          models.Text("Jane"),
		"Notes":         models.Text("   "),
		"Phone":         models.Null(),
		"Merge History": models.Text(`[{"merge_id":"merge_1"}]`),
	}}
	assert.Equal(t, r.Score(bare), r.Score(padded))
}

func TestRanker_LinkedActivityOutranksSparseContact(t *testing.T) {
	r := NewRanker(testConfig())

	active := models.Record{ID: "a", Fields: models.Fields{
		"Name":   models.Text("Jane Doe"),
		"Visits": models.RefList("v1", "v2", "v3"),
	}}
	sparse := models.Record{ID: "b", Fields: models.Fields{
		"Name":  models.Text("Jane Doe"),
		"Email": models.Text("jane@example.com"),
	}}
	assert.Greater(t, r.Score(active), r.Score(sparse))
}

func TestRanker_PerRelationWeights(t *testing.T) {
	cfg := testConfig()
	cfg.Quality.LinkWeights = map[string]int{"Visits": 20}
	r := NewRanker(cfg)

	rec := models.Record{ID: "a", Fields: models.Fields{
		"Visits": models.RefList("v1"),
		"Orders": models.RefList("o1"),
	}}
	assert.Equal(t, 20+models.DefaultQualityWeights().PerLink, r.Score(rec))
}
