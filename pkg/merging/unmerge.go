package merging

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/history"
	"github.com/Ramsey-B/clover/pkg/models"
)

// BuildUnmergePayload reverses one merge recorded in the survivor's history.
// Subsumed records are rebuilt from their snapshots minus fields the current
// schema computes or no longer has; links that only the subsumed records
// brought in are removed from the survivor. Survivor fields the merge
// overwrote are not reverted. The original merge entry stays untouched and a
// new unmerge entry referencing it is appended.
func BuildUnmergePayload(
	survivor models.Record,
	mergeID string,
	schema models.Schema,
	opts models.MergeOptions,
) (*models.UnmergePayload, error) {
	c := clockFrom(opts)

	entries, parseErr := history.ParseValue(survivor.Get(c.historyField))
	entry, ok := history.FindMerge(entries, mergeID)
	if !ok {
		return nil, errors.NewNotFoundError("merge not found in history").WithRecord(survivor.ID).WithMerge(mergeID)
	}
	if history.IsUnmerged(entries, mergeID) {
		return nil, errors.NewPreconditionError("merge was already unmerged").WithRecord(survivor.ID).WithMerge(mergeID)
	}
	if entry.SurvivorRecordID != "" && entry.SurvivorRecordID != survivor.ID {
		return nil, errors.NewPreconditionError("merge belongs to survivor %q", entry.SurvivorRecordID).
			WithRecord(survivor.ID).WithMerge(mergeID)
	}

	creates := make([]models.RecordToCreate, 0, len(entry.MergedRecords))
	refs := make([]models.MergedRecordSnapshot, 0, len(entry.MergedRecords))
	for _, snap := range entry.MergedRecords {
		creates = append(creates, models.RecordToCreate{
			OriginalRecordID: snap.OriginalRecordID,
			Fields:           recreatableFields(snap, schema, c.historyField),
		})
		refs = append(refs, models.MergedRecordSnapshot{
			OriginalRecordID: snap.OriginalRecordID,
			Checksum:         snap.Checksum,
		})
	}

	updates := unlinkSubsumed(survivor, entry, schema)

	unmergeEntry := models.HistoryEntry{
		MergeID:          unmergeIDPrefix + c.newID(),
		Timestamp:        c.now().UTC(),
		Action:           models.HistoryActionUnmerge,
		SurvivorRecordID: survivor.ID,
		OriginalMergeID:  mergeID,
		MergedRecords:    refs,
		FieldDecisions:   map[string]models.FieldDecision{},
		PerformedBy:      opts.PerformedBy,
		Notes:            opts.Notes,
	}
	serialized, err := history.Serialize(history.Append(entries, unmergeEntry))
	if err != nil {
		return nil, err
	}
	updates[c.historyField] = models.Text(serialized)

	return &models.UnmergePayload{
		UnmergeID:           unmergeEntry.MergeID,
		OriginalMergeID:     mergeID,
		SurvivorID:          survivor.ID,
		RecordsToCreate:     creates,
		SurvivorUpdates:     updates,
		UnmergeHistoryEntry: unmergeEntry,
		HistoryWasLossy:     parseErr != nil,
	}, nil
}

// RecordRecreated stamps the ids the store assigned to recreated records onto
// the unmerge entry and re-serializes the survivor's history update. survivor
// is the record as it was read before the unmerge.
func RecordRecreated(p *models.UnmergePayload, survivor models.Record, created map[string]string, opts models.MergeOptions) error {
	c := clockFrom(opts)

	refs := make([]models.MergedRecordSnapshot, len(p.UnmergeHistoryEntry.MergedRecords))
	copy(refs, p.UnmergeHistoryEntry.MergedRecords)
	for i := range refs {
		refs[i].RecreatedID = created[refs[i].OriginalRecordID]
	}
	p.UnmergeHistoryEntry.MergedRecords = refs

	entries, _ := history.ParseValue(survivor.Get(c.historyField))
	serialized, err := history.Serialize(history.Append(entries, p.UnmergeHistoryEntry))
	if err != nil {
		return err
	}
	updates := p.SurvivorUpdates.Clone()
	updates[c.historyField] = models.Text(serialized)
	p.SurvivorUpdates = updates
	return nil
}

// recreatableFields rebuilds a subsumed record from its snapshot. Link lists
// come back from the history JSON as plain string lists, so every field the
// snapshot recorded links for is restored as links, whether the schema or
// only the dedup config declared it.
func recreatableFields(snap models.MergedRecordSnapshot, schema models.Schema, historyField string) models.Fields {
	out := make(models.Fields, len(snap.FieldSnapshot))
	for _, name := range snap.FieldSnapshot.Keys() {
		if schema.IsComputed(name) {
			continue
		}
		if len(schema.Fields) > 0 && !schema.Has(name) && name != historyField {
			continue
		}
		out[name] = snap.FieldSnapshot[name]
		if _, linked := snap.LinkedRecords[name]; linked {
			out[name] = out[name].AsRefList()
		}
	}
	return schema.Coerce(out)
}

// unlinkSubsumed removes from each merged link field the ids that only the
// subsumed records contributed. Previous holds what the survivor had before
// the merge; an entry without it is treated as an empty survivor list.
func unlinkSubsumed(survivor models.Record, entry models.HistoryEntry, schema models.Schema) models.Fields {
	updates := make(models.Fields)

	fields := make([]string, 0, len(entry.FieldDecisions))
	for name, d := range entry.FieldDecisions {
		if d.Strategy == models.ResolutionMergeLinks && !schema.IsComputed(name) {
			fields = append(fields, name)
		}
	}

	sort.Strings(fields)

	for _, field := range fields {
		previous := make(map[string]bool)
		for _, id := range entry.FieldDecisions[field].Previous {
			previous[id] = true
		}
		brought := make(map[string]bool)
		for _, snap := range entry.MergedRecords {
			for _, id := range snap.LinkedRecords[field] {
				if !previous[id] {
					brought[id] = true
				}
			}
		}
		if len(brought) == 0 {
			continue
		}

		current := survivor.Get(field).Items()
		kept := make([]string, 0, len(current))
		for _, id := range current {
			if !brought[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(current) {
			updates[field] = models.RefList(kept...)
		}
	}
	return updates
}
