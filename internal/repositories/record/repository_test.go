package record

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func clientSchema() models.Schema {
	return models.Schema{
		TableName: "Clients",
		Fields: map[string]models.FieldInfo{
			"Name":        {Type: models.FieldTypeText},
			"Visits":      {Type: models.FieldTypeLink},
			"Visit Count": {Type: models.FieldTypeCount},
			"Score":       {Type: models.FieldTypeNumber, IsComputed: true},
		},
	}
}

func TestWritable_DropsComputedFields(t *testing.T) {
	out := writable(models.Fields{
		"Name":        models.Text("Jane"),
		"Visit Count": models.Number(3),
		"Score":       models.Number(9),
		"Unknown":     models.Text("kept"),
	}, clientSchema())

	assert.Equal(t, models.Fields{"Name": models.Text("Jane"), "Unknown": models.Text("kept")}, out)
}

func TestToRecord_CoercesLinks(t *testing.T) {
	var fields database.JSONB[models.Fields]
	err := fields.Scan([]byte(`{"Name":"Jane","Visits":["v1","v2"],"Tags":["a"]}`))
	assert.NoError(t, err)

	rec := toRecord(recordRow{ID: "rec1", Fields: fields}, clientSchema())
	assert.Equal(t, "rec1", rec.ID)
	assert.Equal(t, models.KindRefList, rec.Get("Visits").Kind())
	assert.Equal(t, models.KindStringList, rec.Get("Tags").Kind())

	empty := toRecord(recordRow{ID: "rec2"}, clientSchema())
	assert.NotNil(t, empty.Fields)
}
