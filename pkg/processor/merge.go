package processor

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// GroupSelection picks a scanned group for merging along with the decisions
// for its manual fields
type GroupSelection struct {
	GroupID   string                     `json:"group_id" validate:"required"`
	Decisions map[string]models.Decision `json:"decisions" validate:"omitempty,dive"`
}

// GroupRequest is one group to merge
type GroupRequest struct {
	Group     models.MergeGroup
	Decisions map[string]models.Decision
}

// MergeScan merges the selected groups of a cached scan session. The session
// is dropped once all of its groups have been merged.
func (p *Processor) MergeScan(ctx context.Context, scanID string, selections []GroupSelection, notes string) (models.BatchSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.MergeScan", tracing.ScanID(scanID))
	defer span.End()

	if p.sessions == nil {
		return models.BatchSummary{}, errors.NewConfigurationError("scan sessions are not enabled")
	}
	session, err := p.sessions.Get(ctx, scanID)
	if err != nil {
		return models.BatchSummary{}, err
	}

	reqs := make([]GroupRequest, 0, len(selections))
	for _, sel := range selections {
		group, ok := session.Group(sel.GroupID)
		if !ok {
			return models.BatchSummary{}, errors.NewNotFoundError("group %q not found in scan %q", sel.GroupID, scanID)
		}
		reqs = append(reqs, GroupRequest{Group: group, Decisions: sel.Decisions})
	}

	summary, err := p.MergeGroups(ctx, session.Table, reqs, notes)
	if err != nil {
		return summary, err
	}

	// a session whose every group is merged has nothing left to act on
	if summary.Succeeded == len(session.Groups) {
		if err := p.sessions.Delete(ctx, scanID); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("scan_id", scanID).Warn("Failed to drop completed scan session")
		}
	}
	return summary, nil
}

// MergeGroups merges each group in order. A failing group never stops the
// batch; cancellation does, and the groups not yet started are skipped. The
// error is only set when the table itself cannot be read.
func (p *Processor) MergeGroups(ctx context.Context, table string, reqs []GroupRequest, notes string) (models.BatchSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.MergeGroups", tracing.Table(table), tracing.Groups(len(reqs)))
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "groups": len(reqs)})

	schema, err := p.store.FetchSchema(ctx, table)
	if err != nil {
		log.WithError(err).Error("Failed to fetch schema for merge")
		return models.BatchSummary{}, err
	}

	summary := models.BatchSummary{Outcomes: []models.BatchOutcome{}}
	for _, req := range reqs {
		var outcome models.BatchOutcome
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome = models.BatchOutcome{Key: req.Group.ID, Status: models.OutcomeSkipped, Error: ctxErr.Error()}
		} else {
			outcome = p.mergeGroup(ctx, table, schema, req, notes)
		}
		metrics.MergeOutcomes.WithLabelValues(table, string(outcome.Status)).Inc()
		summary.Add(outcome)
	}

	log.WithFields(map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"partial":   summary.Partial,
	}).Info("Merge batch finished")
	return summary, nil
}

func (p *Processor) mergeGroup(ctx context.Context, table string, schema models.Schema, req GroupRequest, notes string) models.BatchOutcome {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.mergeGroup", tracing.Table(table), tracing.RecordID(req.Group.Survivor.Record.ID))
	defer span.End()

	group := req.Group
	outcome := models.BatchOutcome{Key: group.ID, SurvivorID: group.Survivor.Record.ID}
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"table":       table,
		"group_id":    group.ID,
		"survivor_id": group.Survivor.Record.ID,
	})

	fail := func(err error) models.BatchOutcome {
		log.WithError(err).Warn("Group was not merged")
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		if errors.IsPrecondition(err) {
			outcome.Pending = errors.FieldsOf(err)
		}
		return outcome
	}

	survivor, toMerge, err := p.refetch(ctx, table, group)
	if err != nil {
		return fail(err)
	}

	res := merging.ComputeFieldResolutions(survivor, toMerge, schema, p.cfg)
	res, err = merging.ApplyDecisions(res, req.Decisions)
	if err != nil {
		return fail(err)
	}

	payload, err := merging.BuildMergePayload(survivor, toMerge, res, schema, p.mergeOptions(ctx, notes))
	if err != nil {
		return fail(err)
	}
	outcome.MergeID = payload.MergeID
	if payload.HistoryWasLossy {
		metrics.MalformedHistories.WithLabelValues(table).Inc()
		log.Warn("Survivor history could not be parsed and was started over")
	}

	if _, err := p.store.UpdateRecord(ctx, table, survivor.ID, payload.UpdateFields); err != nil {
		return fail(err)
	}

	var undeleted []string
	if err := p.store.DeleteRecords(ctx, table, payload.RecordsToDelete); err != nil {
		log.WithError(err).Error("Survivor was updated but subsumed records were not deleted")
		undeleted = payload.RecordsToDelete
		outcome.Status = models.OutcomePartial
		outcome.Undeleted = undeleted
		outcome.Error = fmt.Sprintf("survivor updated but records %v were not deleted: %v", undeleted, err)
	} else {
		outcome.Status = models.OutcomeSucceeded
		outcome.Deleted = payload.RecordsToDelete
	}

	p.announceMerge(ctx, table, payload, undeleted)
	log.WithFields(map[string]any{"merge_id": payload.MergeID, "status": outcome.Status}).Info("Merged group")
	return outcome
}

// refetch reloads the group's records and refuses the merge when any of them
// changed or disappeared since the scan
func (p *Processor) refetch(ctx context.Context, table string, group models.MergeGroup) (models.Record, []models.Record, error) {
	ids := make([]string, 0, len(group.ToMerge)+1)
	ids = append(ids, group.Survivor.Record.ID)
	for _, r := range group.ToMerge {
		ids = append(ids, r.Record.ID)
	}

	current, err := p.store.FetchAllRecords(ctx, table, store.FetchOptions{IDs: ids})
	if err != nil {
		return models.Record{}, nil, err
	}
	byID := make(map[string]models.Record, len(current))
	for _, rec := range current {
		byID[rec.ID] = rec
	}

	check := func(scanned models.RankedRecord) (models.Record, error) {
		rec, ok := byID[scanned.Record.ID]
		if !ok {
			return models.Record{}, errors.NewPreconditionError("record no longer exists").WithRecord(scanned.Record.ID)
		}
		if scanned.Fingerprint != "" && fingerprint.HasChanged(scanned.Fingerprint, fingerprint.Record(rec, p.cfg.HistoryField)) {
			return models.Record{}, errors.NewPreconditionError("record changed since the scan").WithRecord(rec.ID)
		}
		return rec, nil
	}

	survivor, err := check(group.Survivor)
	if err != nil {
		return models.Record{}, nil, err
	}
	toMerge := make([]models.Record, 0, len(group.ToMerge))
	for _, scanned := range group.ToMerge {
		rec, err := check(scanned)
		if err != nil {
			return models.Record{}, nil, err
		}
		toMerge = append(toMerge, rec)
	}
	return survivor, toMerge, nil
}

// announceMerge emits the merge event and records lineage. Failures are
// logged only; the merge has already been applied.
func (p *Processor) announceMerge(ctx context.Context, table string, payload *models.MergePayload, undeleted []string) {
	if p.events != nil {
		if err := p.events.EmitMerged(ctx, table, payload, undeleted); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("merge_id", payload.MergeID).Warn("Failed to emit merge event")
		}
	}
	if p.lineage != nil {
		if err := p.lineage.RecordMerge(ctx, table, payload); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("merge_id", payload.MergeID).Warn("Failed to record merge lineage")
		}
	}
}
