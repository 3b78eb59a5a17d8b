package merging

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/history"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	mergeIDPrefix   = "merge_"
	unmergeIDPrefix = "unmerge_"
)

type clock struct {
	now          func() time.Time
	newID        func() string
	historyField string
}

func clockFrom(opts models.MergeOptions) clock {
	c := clock{now: opts.Now, newID: opts.NewID, historyField: opts.HistoryField}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.historyField == "" {
		c.historyField = models.DefaultDedupConfig().HistoryField
	}
	return c
}

// BuildMergePayload turns resolved fields into the survivor update, the ids
// to delete and the audit entry. It refuses while any field still needs a
// decision so nothing partial ever reaches the store.
func BuildMergePayload(
	survivor models.Record,
	toMerge []models.Record,
	res models.Resolutions,
	schema models.Schema,
	opts models.MergeOptions,
) (*models.MergePayload, error) {
	if pending := res.Pending(); len(pending) > 0 {
		return nil, errors.NewPreconditionError("%d field(s) still need a decision", len(pending)).
			WithRecord(survivor.ID).WithFields(pending...)
	}
	if len(toMerge) == 0 {
		return nil, errors.NewPreconditionError("no records to merge").WithRecord(survivor.ID)
	}
	for _, rec := range toMerge {
		if rec.ID == survivor.ID {
			return nil, errors.NewPreconditionError("survivor cannot be merged into itself").WithRecord(survivor.ID)
		}
	}

	c := clockFrom(opts)
	if schema.IsComputed(c.historyField) {
		return nil, errors.NewConfigurationError("history field %q is computed", c.historyField).WithFields(c.historyField)
	}

	mergeID := mergeIDPrefix + c.newID()
	update := make(models.Fields)
	decisions := make(map[string]models.FieldDecision)
	linkFields := schema.LinkFields()

	for _, field := range resolutionFields(res) {
		r := res[field]
		if r.Strategy == models.ResolutionComputed || r.Strategy == models.ResolutionExcluded {
			continue
		}
		if field == c.historyField || schema.IsComputed(field) {
			continue
		}

		decision := models.FieldDecision{Strategy: r.Strategy, Value: r.Value}
		if r.Strategy == models.ResolutionMergeLinks {
			decision.Previous = survivor.Get(field).Items()
			linkFields = append(linkFields, field)
		}
		decisions[field] = decision

		if r.Include {
			update[field] = r.Value
		}
	}

	snapshots := make([]models.MergedRecordSnapshot, 0, len(toMerge))
	deleteIDs := make([]string, 0, len(toMerge))
	for _, rec := range toMerge {
		snapshots = append(snapshots, snapshot(rec, linkFields))
		deleteIDs = append(deleteIDs, rec.ID)
	}

	entry := models.HistoryEntry{
		MergeID:          mergeID,
		Timestamp:        c.now().UTC(),
		Action:           models.HistoryActionMerge,
		SurvivorRecordID: survivor.ID,
		MergedRecords:    snapshots,
		FieldDecisions:   decisions,
		PerformedBy:      opts.PerformedBy,
		Notes:            opts.Notes,
	}

	existing, parseErr := history.ParseValue(survivor.Get(c.historyField))
	serialized, err := history.Serialize(history.Append(existing, entry))
	if err != nil {
		return nil, err
	}
	update[c.historyField] = models.Text(serialized)

	return &models.MergePayload{
		MergeID:         mergeID,
		SurvivorID:      survivor.ID,
		HistoryEntry:    entry,
		UpdateFields:    update,
		RecordsToDelete: deleteIDs,
		HistoryWasLossy: parseErr != nil,
	}, nil
}

// snapshot captures every field of a subsumed record and the links of every
// link field, enough to recreate it later. linkFields are the schema's links
// plus the fields merged as links.
func snapshot(rec models.Record, linkFields []string) models.MergedRecordSnapshot {
	links := make(map[string][]string)
	for _, field := range linkFields {
		if ids := rec.Get(field).Items(); len(ids) > 0 {
			links[field] = ids
		}
	}
	for _, field := range rec.Fields.Keys() {
		if rec.Fields[field].Kind() == models.KindRefList {
			links[field] = rec.Fields[field].Items()
		}
	}
	return models.MergedRecordSnapshot{
		OriginalRecordID: rec.ID,
		FieldSnapshot:    rec.Fields.Clone(),
		LinkedRecords:    links,
		Checksum:         fingerprint.Record(rec, ""),
	}
}

func resolutionFields(res models.Resolutions) []string {
	fields := make([]string, 0, len(res))
	for f := range res {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
