// Package merging resolves how records combine and builds the merge and
// unmerge payloads the store applies
package merging

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// fieldValue is one record's value for a field with its origin
type fieldValue struct {
	recordID string
	survivor bool
	value    models.Value
}

func collectValues(field string, survivor models.Record, toMerge []models.Record) []fieldValue {
	values := make([]fieldValue, 0, len(toMerge)+1)
	values = append(values, fieldValue{recordID: survivor.ID, survivor: true, value: survivor.Get(field)})
	for _, rec := range toMerge {
		values = append(values, fieldValue{recordID: rec.ID, value: rec.Get(field)})
	}
	return values
}

func nonEmpty(values []fieldValue) []fieldValue {
	out := make([]fieldValue, 0, len(values))
	for _, v := range values {
		if !v.value.IsEmpty() {
			out = append(out, v)
		}
	}
	return out
}

func toSources(values []fieldValue) []models.SourceValue {
	out := make([]models.SourceValue, 0, len(values))
	for _, v := range values {
		out = append(out, models.SourceValue{RecordID: v.recordID, IsSurvivor: v.survivor, Value: v.value})
	}
	return out
}

func fieldNames(survivor models.Record, toMerge []models.Record) []string {
	all := survivor.Fields.Clone()
	for _, rec := range toMerge {
		for name := range rec.Fields {
			if _, ok := all[name]; !ok {
				all[name] = models.Null()
			}
		}
	}
	return all.Keys()
}

// ComputeFieldResolutions decides every field that appears on the survivor
// or any subsumed record:
//   - computed fields are never touched
//   - excluded fields and the history field are left alone
//   - link fields take the ordered union of every record's links
//   - concatenate fields join the distinct values, survivor first
//   - anything else resolves automatically when at most one distinct value
//     exists and otherwise waits for a manual decision
func ComputeFieldResolutions(survivor models.Record, toMerge []models.Record, schema models.Schema, cfg models.DedupConfig) models.Resolutions {
	cfg = cfg.WithDefaults()
	res := make(models.Resolutions)

	for _, field := range fieldNames(survivor, toMerge) {
		values := collectValues(field, survivor, toMerge)

		switch {
		case schema.IsComputed(field):
			res[field] = models.FieldResolution{Field: field, Strategy: models.ResolutionComputed}
		case cfg.IsExcludedField(field) || field == cfg.HistoryField:
			res[field] = models.FieldResolution{Field: field, Strategy: models.ResolutionExcluded}
		case cfg.IsLinkField(field) || schema.IsLink(field) || hasRefList(values):
			res[field] = mergeLinks(field, values)
		case cfg.IsConcatenateField(field):
			res[field] = concatenate(field, values, cfg.ConcatDelimiter)
		default:
			res[field] = resolveValue(field, values)
		}
	}
	return res
}

func hasRefList(values []fieldValue) bool {
	for _, v := range values {
		if v.value.Kind() == models.KindRefList {
			return true
		}
	}
	return false
}

func mergeLinks(field string, values []fieldValue) models.FieldResolution {
	seen := make(map[string]bool)
	union := make([]string, 0)
	for _, v := range values {
		for _, id := range v.value.Items() {
			if !seen[id] {
				seen[id] = true
				union = append(union, id)
			}
		}
	}
	return models.FieldResolution{
		Field:    field,
		Strategy: models.ResolutionMergeLinks,
		Value:    models.RefList(union...),
		Include:  len(union) > 0,
		Sources:  toSources(nonEmpty(values)),
	}
}

func concatenate(field string, values []fieldValue, delimiter string) models.FieldResolution {
	seen := make(map[string]bool)
	parts := make([]string, 0, len(values))
	for _, v := range nonEmpty(values) {
		s := v.value.String()
		if !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}
	joined := strings.Join(parts, delimiter)
	return models.FieldResolution{
		Field:    field,
		Strategy: models.ResolutionConcatenate,
		Value:    models.Text(joined),
		Include:  joined != "",
		Sources:  toSources(nonEmpty(values)),
	}
}

func resolveValue(field string, values []fieldValue) models.FieldResolution {
	present := nonEmpty(values)
	if len(present) == 0 {
		return models.FieldResolution{Field: field, Strategy: models.ResolutionAuto}
	}

	distinct := make(map[string]bool)
	for _, v := range present {
		distinct[v.value.Key()] = true
	}
	if len(distinct) == 1 {
		return models.FieldResolution{
			Field:    field,
			Strategy: models.ResolutionAuto,
			Value:    present[0].value,
			Include:  true,
			Sources:  toSources(present),
		}
	}

	return models.FieldResolution{
		Field:         field,
		Strategy:      models.ResolutionManual,
		Include:       true,
		NeedsDecision: true,
		Sources:       toSources(present),
	}
}

// ApplyDecisions returns a copy of res with each decision applied, in field order
func ApplyDecisions(res models.Resolutions, decisions map[string]models.Decision) (models.Resolutions, error) {
	out := make(models.Resolutions, len(res))
	for k, v := range res {
		out[k] = v
	}

	fields := make([]string, 0, len(decisions))
	for f := range decisions {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, field := range fields {
		resolved, err := ApplyDecision(out, field, decisions[field])
		if err != nil {
			return nil, err
		}
		out[field] = resolved
	}
	return out, nil
}

// ApplyDecision resolves one field: keep_survivor takes the survivor's value,
// keep_other takes the value of the subsumed record named by RecordID and
// append takes the caller's value
func ApplyDecision(res models.Resolutions, field string, d models.Decision) (models.FieldResolution, error) {
	r, ok := res[field]
	if !ok {
		return r, errors.NewNotFoundError("no resolution for field %q", field).WithFields(field)
	}
	if r.Strategy == models.ResolutionComputed || r.Strategy == models.ResolutionExcluded {
		return r, errors.NewPreconditionError("field %q is %s and cannot be decided", field, r.Strategy).WithFields(field)
	}

	switch d.Strategy {
	case models.ResolutionKeepSurvivor:
		r.Value = models.Null()
		for _, s := range r.Sources {
			if s.IsSurvivor {
				r.Value = s.Value
			}
		}
	case models.ResolutionKeepOther:
		found := false
		for _, s := range r.Sources {
			if !s.IsSurvivor && s.RecordID == d.RecordID {
				r.Value, found = s.Value, true
				break
			}
		}
		if !found {
			return r, errors.NewNotFoundError("record %q has no value for field %q", d.RecordID, field).WithRecord(d.RecordID).WithFields(field)
		}
	case models.ResolutionAppend:
		r.Value = d.Value
	default:
		return r, errors.NewConfigurationError("unsupported decision strategy %q", d.Strategy).WithFields(field)
	}

	r.Strategy = d.Strategy
	r.NeedsDecision = false
	r.Include = true
	return r, nil
}
