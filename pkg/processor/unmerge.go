package processor

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// UnmergeRequest reverses one merge recorded on a survivor
type UnmergeRequest struct {
	SurvivorID string `json:"survivor_id" validate:"required"`
	MergeID    string `json:"merge_id" validate:"required"`
}

// Unmerge reverses each merge in order with the same batch semantics as
// MergeGroups
func (p *Processor) Unmerge(ctx context.Context, table string, reqs []UnmergeRequest, notes string) (models.BatchSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Unmerge", tracing.Table(table))
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "requests": len(reqs)})

	schema, err := p.store.FetchSchema(ctx, table)
	if err != nil {
		log.WithError(err).Error("Failed to fetch schema for unmerge")
		return models.BatchSummary{}, err
	}

	summary := models.BatchSummary{Outcomes: []models.BatchOutcome{}}
	for _, req := range reqs {
		var outcome models.BatchOutcome
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome = models.BatchOutcome{Key: req.MergeID, SurvivorID: req.SurvivorID, Status: models.OutcomeSkipped, Error: ctxErr.Error()}
		} else {
			outcome = p.unmergeOne(ctx, table, schema, req, notes)
		}
		metrics.UnmergeOutcomes.WithLabelValues(table, string(outcome.Status)).Inc()
		summary.Add(outcome)
	}

	log.WithFields(map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"partial":   summary.Partial,
	}).Info("Unmerge batch finished")
	return summary, nil
}

func (p *Processor) unmergeOne(ctx context.Context, table string, schema models.Schema, req UnmergeRequest, notes string) models.BatchOutcome {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.unmergeOne", tracing.Table(table), tracing.MergeID(req.MergeID), tracing.RecordID(req.SurvivorID))
	defer span.End()

	outcome := models.BatchOutcome{Key: req.MergeID, MergeID: req.MergeID, SurvivorID: req.SurvivorID}
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"table":       table,
		"merge_id":    req.MergeID,
		"survivor_id": req.SurvivorID,
	})

	fail := func(err error) models.BatchOutcome {
		log.WithError(err).Warn("Merge was not reversed")
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	created := map[string]string{}
	partial := func(payload *models.UnmergePayload, err error) models.BatchOutcome {
		log.WithError(err).Error("Merge was only partly reversed")
		outcome.Status = models.OutcomePartial
		outcome.Created = createdIDs(payload, created)
		outcome.Error = err.Error()
		return outcome
	}

	survivor, err := p.store.GetRecord(ctx, table, req.SurvivorID)
	if err != nil {
		return fail(err)
	}

	opts := p.mergeOptions(ctx, notes)
	payload, err := merging.BuildUnmergePayload(survivor, req.MergeID, schema, opts)
	if err != nil {
		return fail(err)
	}
	if payload.HistoryWasLossy {
		metrics.MalformedHistories.WithLabelValues(table).Inc()
		log.Warn("Survivor history is partly unreadable")
	}

	for _, rc := range payload.RecordsToCreate {
		rec, err := p.store.CreateRecord(ctx, table, rc.Fields)
		if err != nil {
			if len(created) == 0 {
				return fail(err)
			}
			return partial(payload, fmt.Errorf("recreating %s failed after %d record(s) were recreated: %w", rc.OriginalRecordID, len(created), err))
		}
		created[rc.OriginalRecordID] = rec.ID
	}

	if err := merging.RecordRecreated(payload, survivor, created, opts); err != nil {
		return partial(payload, err)
	}
	if _, err := p.store.UpdateRecord(ctx, table, survivor.ID, payload.SurvivorUpdates); err != nil {
		return partial(payload, fmt.Errorf("records were recreated but the survivor was not updated: %w", err))
	}

	outcome.Status = models.OutcomeSucceeded
	outcome.MergeID = payload.UnmergeID
	outcome.Created = createdIDs(payload, created)

	p.announceUnmerge(ctx, table, payload)
	log.WithFields(map[string]any{"unmerge_id": payload.UnmergeID, "created": len(created)}).Info("Reversed merge")
	return outcome
}

// createdIDs lists the new ids in snapshot order
func createdIDs(payload *models.UnmergePayload, created map[string]string) []string {
	out := make([]string, 0, len(created))
	for _, rc := range payload.RecordsToCreate {
		if id, ok := created[rc.OriginalRecordID]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (p *Processor) announceUnmerge(ctx context.Context, table string, payload *models.UnmergePayload) {
	if p.events != nil {
		if err := p.events.EmitUnmerged(ctx, table, payload); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("unmerge_id", payload.UnmergeID).Warn("Failed to emit unmerge event")
		}
	}
	if p.lineage != nil {
		if err := p.lineage.RecordUnmerge(ctx, table, payload); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("unmerge_id", payload.UnmergeID).Warn("Failed to record unmerge lineage")
		}
	}
}
