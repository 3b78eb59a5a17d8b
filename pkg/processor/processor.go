// Package processor drives the dedup engine against a record store: scans
// produce candidate groups, batch merges and unmerges apply them, and every
// applied change is announced through events and lineage.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

// SessionStore caches scan sessions between a scan and its merges
type SessionStore interface {
	Save(ctx context.Context, session *models.ScanSession) error
	Get(ctx context.Context, id string) (*models.ScanSession, error)
	Delete(ctx context.Context, id string) error
}

// EventEmitter announces applied merges and unmerges
type EventEmitter interface {
	EmitMerged(ctx context.Context, table string, p *models.MergePayload, undeleted []string) error
	EmitUnmerged(ctx context.Context, table string, p *models.UnmergePayload) error
}

// LineageRecorder keeps the merge lineage graph
type LineageRecorder interface {
	RecordMerge(ctx context.Context, table string, p *models.MergePayload) error
	RecordUnmerge(ctx context.Context, table string, p *models.UnmergePayload) error
}

// Processor runs scans, merges and unmerges for one dedup configuration
type Processor struct {
	logger   ectologger.Logger
	store    store.Store
	sessions SessionStore
	events   EventEmitter
	lineage  LineageRecorder
	cfg      models.DedupConfig
	now      func() time.Time
	newID    func() string
}

// Option customizes a Processor
type Option func(*Processor)

// WithSessions caches scan sessions so merges can be requested by scan id
func WithSessions(s SessionStore) Option {
	return func(p *Processor) { p.sessions = s }
}

// WithEvents publishes an event after every applied merge and unmerge
func WithEvents(e EventEmitter) Option {
	return func(p *Processor) { p.events = e }
}

// WithLineage records every applied merge and unmerge in the lineage graph
func WithLineage(l LineageRecorder) Option {
	return func(p *Processor) { p.lineage = l }
}

// WithClock replaces the time and id sources
func WithClock(now func() time.Time, newID func() string) Option {
	return func(p *Processor) {
		p.now = now
		p.newID = newID
	}
}

func NewProcessor(logger ectologger.Logger, st store.Store, cfg models.DedupConfig, opts ...Option) *Processor {
	p := &Processor{
		logger: logger,
		store:  st,
		cfg:    cfg.WithDefaults(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective dedup configuration
func (p *Processor) Config() models.DedupConfig {
	return p.cfg
}

func (p *Processor) mergeOptions(ctx context.Context, notes string) models.MergeOptions {
	return models.MergeOptions{
		PerformedBy:  clcontext.PerformedBy(ctx),
		Notes:        notes,
		HistoryField: p.cfg.HistoryField,
		Now:          p.now,
		NewID:        p.newID,
	}
}
