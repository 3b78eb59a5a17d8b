package processor

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const scanIDPrefix = "scan_"

// Scan loads every record of the table, finds duplicate candidates, groups
// them and caches the result as a scan session. observer may be nil.
func (p *Processor) Scan(ctx context.Context, table string, observer matching.ProgressObserver) (*models.ScanSession, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Scan", tracing.Table(table))
	defer span.End()

	start := time.Now()
	log := p.logger.WithContext(ctx).WithField("table", table)

	session, err := p.scan(ctx, table, observer)
	metrics.ScanDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScansTotal.WithLabelValues(table, "failed").Inc()
		tracing.Fail(span, err)
		log.WithError(err).Error("Scan failed")
		return nil, err
	}
	metrics.ScansTotal.WithLabelValues(table, "succeeded").Inc()
	tracing.Annotate(ctx, tracing.ScanID(session.ID), tracing.Candidates(session.Summary.Candidates), tracing.Groups(session.Summary.Groups))

	log.WithFields(map[string]any{
		"scan_id":    session.ID,
		"records":    session.Summary.Records,
		"candidates": session.Summary.Candidates,
		"groups":     session.Summary.Groups,
		"duration":   time.Since(start).String(),
	}).Info("Scan completed")
	return session, nil
}

func (p *Processor) scan(ctx context.Context, table string, observer matching.ProgressObserver) (*models.ScanSession, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	records, err := p.store.FetchAllRecords(ctx, table, store.FetchOptions{})
	if err != nil {
		return nil, err
	}

	var opts []matching.FinderOption
	if observer != nil {
		opts = append(opts, matching.WithObserver(observer))
	}
	candidates, err := matching.NewFinder(p.cfg, opts...).FindDuplicateCandidates(records)
	if err != nil {
		return nil, err
	}
	groups := grouping.GroupCandidates(candidates)

	session := &models.ScanSession{
		ID:         scanIDPrefix + p.newID(),
		Table:      table,
		Candidates: candidates,
		Groups:     groups,
		Summary:    summarize(len(records), candidates, groups),
		CreatedAt:  p.now().UTC(),
	}

	for tier, n := range session.Summary.ByTier {
		metrics.CandidatesFound.WithLabelValues(table, tier).Add(float64(n))
	}

	if p.sessions != nil {
		if err := p.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Compare finds records of left that duplicate records of right. Only the
// fields both tables share take part.
func (p *Processor) Compare(ctx context.Context, left, right string) ([]models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Compare")
	defer span.End()

	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	leftSchema, err := p.store.FetchSchema(ctx, left)
	if err != nil {
		return nil, err
	}
	rightSchema, err := p.store.FetchSchema(ctx, right)
	if err != nil {
		return nil, err
	}
	common, err := matching.CommonFields(leftSchema, rightSchema)
	if err != nil {
		return nil, err
	}

	leftRecords, err := p.store.FetchAllRecords(ctx, left, store.FetchOptions{Fields: common})
	if err != nil {
		return nil, err
	}
	rightRecords, err := p.store.FetchAllRecords(ctx, right, store.FetchOptions{Fields: common})
	if err != nil {
		return nil, err
	}

	candidates, err := matching.NewFinder(p.cfg).FindCrossCandidates(leftRecords, rightRecords)
	if err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"left":       left,
		"right":      right,
		"fields":     len(common),
		"candidates": len(candidates),
	}).Info("Compared tables")
	return candidates, nil
}

func summarize(records int, candidates []models.MatchCandidate, groups []models.MergeGroup) models.ScanSummary {
	s := models.ScanSummary{
		Records:    records,
		Candidates: len(candidates),
		Groups:     len(groups),
		ByTier:     map[string]int{},
	}
	for _, c := range candidates {
		s.ByTier[c.Tier.String()]++
		if c.IsConflict {
			s.Conflicts++
		}
	}
	return s
}

// GetScan loads a cached scan session
func (p *Processor) GetScan(ctx context.Context, id string) (*models.ScanSession, error) {
	if p.sessions == nil {
		return nil, errors.NewConfigurationError("scan sessions are not enabled")
	}
	return p.sessions.Get(ctx, id)
}
