package processor

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/history"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// History returns a record's merge audit log, oldest first. An unreadable
// history is logged and reads as empty.
func (p *Processor) History(ctx context.Context, table, recordID string) ([]models.HistoryEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.History", tracing.Table(table), tracing.RecordID(recordID))
	defer span.End()

	rec, err := p.store.GetRecord(ctx, table, recordID)
	if err != nil {
		return nil, err
	}

	entries, err := history.ParseValue(rec.Get(p.cfg.HistoryField))
	if err != nil {
		metrics.MalformedHistories.WithLabelValues(table).Inc()
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":     table,
			"record_id": recordID,
		}).Warn("Record history could not be parsed")
	}
	return entries, nil
}
