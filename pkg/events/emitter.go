// Package events emits record lifecycle events after merges and unmerges
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher delivers an encoded event; kafka.Producer implements it
type Publisher interface {
	Publish(ctx context.Context, key, eventType, schemaVersion string, event any) error
}

// Emitter builds events from merge results and publishes them
type Emitter struct {
	publisher    Publisher
	historyField string
	logger       ectologger.Logger
	now          func() time.Time
}

// NewEmitter creates an emitter. The history field is left out of event
// payloads since consumers can read it from the record.
func NewEmitter(publisher Publisher, historyField string, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher:    publisher,
		historyField: historyField,
		logger:       logger,
		now:          time.Now,
	}
}

func (e *Emitter) base(ctx context.Context, eventType EventType, table string) BaseEvent {
	return BaseEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Table:         table,
		Timestamp:     e.now().UTC(),
		PerformedBy:   clcontext.PerformedBy(ctx),
		CorrelationID: clcontext.GetRequestID(ctx),
	}
}

// EmitMerged publishes record.merged. undeleted lists subsumed records the
// store failed to delete.
func (e *Emitter) EmitMerged(ctx context.Context, table string, p *models.MergePayload, undeleted []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMerged", tracing.Table(table), tracing.MergeID(p.MergeID))
	defer span.End()

	event := RecordMergedEvent{
		BaseEvent:     e.base(ctx, EventTypeRecordMerged, table),
		MergeID:       p.MergeID,
		SurvivorID:    p.SurvivorID,
		MergedIDs:     p.RecordsToDelete,
		UpdatedFields: p.UpdateFields.Keys(),
		Updates:       e.withoutHistory(p.UpdateFields),
		UndeletedIDs:  undeleted,
	}

	if err := e.publisher.Publish(ctx, p.SurvivorID, string(EventTypeRecordMerged), SchemaVersion, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit record.merged event")
		return err
	}
	return nil
}

// EmitUnmerged publishes record.unmerged
func (e *Emitter) EmitUnmerged(ctx context.Context, table string, p *models.UnmergePayload) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitUnmerged", tracing.Table(table), tracing.UnmergeID(p.UnmergeID))
	defer span.End()

	recreated := make(map[string]string, len(p.UnmergeHistoryEntry.MergedRecords))
	for _, ref := range p.UnmergeHistoryEntry.MergedRecords {
		recreated[ref.OriginalRecordID] = ref.RecreatedID
	}

	event := RecordUnmergedEvent{
		BaseEvent:       e.base(ctx, EventTypeRecordUnmerged, table),
		UnmergeID:       p.UnmergeID,
		OriginalMergeID: p.OriginalMergeID,
		SurvivorID:      p.SurvivorID,
		RecreatedIDs:    recreated,
	}

	if err := e.publisher.Publish(ctx, p.SurvivorID, string(EventTypeRecordUnmerged), SchemaVersion, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit record.unmerged event")
		return err
	}
	return nil
}

func (e *Emitter) withoutHistory(fields models.Fields) models.Fields {
	out := fields.Clone()
	delete(out, e.historyField)
	return out
}
