// Package quality scores how complete a record is, to elect merge survivors
package quality

import (
	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fieldClass int

const (
	classOther fieldClass = iota
	classIdentity
	classContact
	classAddress
)

// Ranker scores records by weighted completeness. Every non-empty field adds
// points for its class and every linked record adds its relation's weight,
// so filling a field or adding a link never lowers the score.
type Ranker struct {
	weights      models.QualityWeights
	classes      map[string]fieldClass
	linkFields   []string
	historyField string
}

// NewRanker builds a ranker from the dedup configuration
func NewRanker(cfg models.DedupConfig) *Ranker {
	cfg = cfg.WithDefaults()

	classes := make(map[string]fieldClass)
	for _, f := range append(append([]string{}, cfg.UniqueIDFields...), cfg.NameFields()...) {
		classes[f] = classIdentity
	}
	for _, f := range append(append([]string{}, cfg.PhoneFields...), cfg.EmailFields...) {
		classes[f] = classContact
	}
	if cfg.DOBField != "" {
		classes[cfg.DOBField] = classIdentity
	}
	for _, f := range cfg.AddressFields {
		classes[f] = classAddress
	}

	return &Ranker{
		weights:      cfg.Quality,
		classes:      classes,
		linkFields:   cfg.LinkFields,
		historyField: cfg.HistoryField,
	}
}

// Score returns the record's completeness points
func (r *Ranker) Score(rec models.Record) int {
	score := 0
	for _, name := range rec.Fields.Keys() {
		if name == r.historyField {
			continue
		}
		value := rec.Fields[name]
		if value.IsEmpty() {
			continue
		}

		if value.Kind() == models.KindRefList || ectolinq.Contains(r.linkFields, name) {
			score += len(value.Items()) * r.linkWeight(name)
			continue
		}

		switch r.classes[name] {
		case classIdentity:
			score += r.weights.IdentityField
		case classContact:
			score += r.weights.ContactField
		case classAddress:
			score += r.weights.AddressField
		default:
			score += r.weights.OtherField
		}
	}
	return score
}

// Rank wraps a record with its score and display name
func (r *Ranker) Rank(rec models.Record, name string) models.RankedRecord {
	return models.RankedRecord{Record: rec, Score: r.Score(rec), Name: name}
}

func (r *Ranker) linkWeight(field string) int {
	if w, ok := r.weights.LinkWeights[field]; ok {
		return w
	}
	return r.weights.PerLink
}
