// Package matching scores record pairs and finds duplicate candidates
package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/quality"
)

const defaultProgressInterval = 100

// ProgressObserver receives periodic progress while candidates are generated
type ProgressObserver interface {
	ScanProgress(p models.ScanProgress)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(p models.ScanProgress)

func (f ProgressFunc) ScanProgress(p models.ScanProgress) { f(p) }

// Finder generates scored duplicate candidates from a record set
type Finder struct {
	cfg      models.DedupConfig
	scorer   *Scorer
	ranker   *quality.Ranker
	observer ProgressObserver
	every    int
}

// FinderOption configures a Finder
type FinderOption func(*Finder)

// WithObserver reports progress to o
func WithObserver(o ProgressObserver) FinderOption {
	return func(f *Finder) { f.observer = o }
}

// WithProgressInterval reports progress every n buckets or records
func WithProgressInterval(n int) FinderOption {
	return func(f *Finder) {
		if n > 0 {
			f.every = n
		}
	}
}

// NewFinder creates a Finder for one dedup configuration
func NewFinder(cfg models.DedupConfig, opts ...FinderOption) *Finder {
	cfg = cfg.WithDefaults()
	f := &Finder{
		cfg:    cfg,
		scorer: NewScorer(cfg),
		ranker: quality.NewRanker(cfg),
		every:  defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ranker returns the quality ranker the finder elects survivors with
func (f *Finder) Ranker() *quality.Ranker {
	return f.ranker
}

// FindDuplicateCandidates returns every likely duplicate pair in records,
// best tier first then highest confidence. The result is deterministic for
// a given input order.
func (f *Finder) FindDuplicateCandidates(records []models.Record) ([]models.MatchCandidate, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	p := f.newPass(f.prepare(records, 0), false)
	return p.run(), nil
}

// FindCrossCandidates only pairs a record from left with a record from right
func (f *Finder) FindCrossCandidates(left, right []models.Record) ([]models.MatchCandidate, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	entries := append(f.prepare(left, 0), f.prepare(right, 1)...)
	p := f.newPass(entries, true)
	return p.run(), nil
}

// validate rejects configs that compare nothing or name unknown normalizers
func (f *Finder) validate() error {
	if err := f.cfg.Validate(); err != nil {
		return err
	}
	return normalizers.ValidateChains(f.cfg.Normalizers)
}

// CommonFields returns the writable fields both schemas share, sorted
func CommonFields(a, b models.Schema) ([]string, error) {
	out := make([]string, 0)
	for name := range a.Fields {
		if b.Has(name) && !a.IsComputed(name) && !b.IsComputed(name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, errors.NewConfigurationError("no common fields between %s and %s", a.TableName, b.TableName)
	}
	sort.Strings(out)
	return out, nil
}

type entry struct {
	ranked   models.RankedRecord
	key      string
	variants []string
	side     int
}

func (f *Finder) prepare(records []models.Record, side int) []entry {
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		name := f.scorer.FullName(rec)
		normalized := normalizers.NormalizeName(name)
		ranked := f.ranker.Rank(rec, name)
		ranked.Fingerprint = fingerprint.Record(rec, f.cfg.HistoryField)
		out = append(out, entry{
			ranked:   ranked,
			key:      normalized.Canonical,
			variants: normalized.Variants,
			side:     side,
		})
	}
	return out
}

type pass struct {
	f          *Finder
	entries    []entry
	cross      bool
	seen       map[string]bool
	candidates []models.MatchCandidate
}

func (f *Finder) newPass(entries []entry, cross bool) *pass {
	return &pass{
		f:          f,
		entries:    entries,
		cross:      cross,
		seen:       make(map[string]bool),
		candidates: make([]models.MatchCandidate, 0),
	}
}

func (p *pass) run() []models.MatchCandidate {
	p.scoreBuckets(models.ScanPhaseBuckets, p.nameBuckets())
	p.scoreBuckets(models.ScanPhaseIdentifiers, p.identifierBuckets())
	p.scoreFuzzy()

	sort.SliceStable(p.candidates, func(i, j int) bool {
		a, b := p.candidates[i], p.candidates[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return a.Confidence > b.Confidence
	})
	return p.candidates
}

// nameBuckets groups records by match key. Each record also joins the bucket
// of every nickname variant of its key, so "bob smith" meets "robert smith".
func (p *pass) nameBuckets() [][]int {
	buckets := make([][]int, 0)
	byKey := make(map[string]int)
	for i, e := range p.entries {
		if e.key == "" {
			continue
		}
		for _, key := range e.variants {
			b, ok := byKey[key]
			if !ok {
				b = len(buckets)
				byKey[key] = b
				buckets = append(buckets, nil)
			}
			buckets[b] = append(buckets[b], i)
		}
	}
	return buckets
}

// identifierBuckets groups records sharing a normalized unique identifier, so
// records with the same id but unrelated names are still compared
func (p *pass) identifierBuckets() [][]int {
	buckets := make([][]int, 0)
	for _, field := range p.f.cfg.UniqueIDFields {
		normalize := p.f.scorer.normalizer(field, normalizers.NormalizeIdentifier)
		byValue := make(map[string]int)
		for i, e := range p.entries {
			v := e.ranked.Record.Get(field)
			if v.IsEmpty() {
				continue
			}
			id := normalize(v.String())
			if id == "" {
				continue
			}
			b, ok := byValue[id]
			if !ok {
				b = len(buckets)
				byValue[id] = b
				buckets = append(buckets, nil)
			}
			buckets[b] = append(buckets[b], i)
		}
	}
	return buckets
}

func (p *pass) scoreBuckets(phase models.ScanPhase, buckets [][]int) {
	for bi, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				p.consider(members[x], members[y])
			}
		}
		p.report(phase, bi+1, len(buckets))
	}
}

func (p *pass) scoreFuzzy() {
	idx := newTrigramIndex()
	for i, e := range p.entries {
		idx.add(i, e.key)
	}
	for i, e := range p.entries {
		for _, j := range idx.search(e.key, p.f.cfg.FuzzyThreshold) {
			if j != i {
				p.consider(min(i, j), max(i, j))
			}
		}
		p.report(models.ScanPhaseFuzzy, i+1, len(p.entries))
	}
}

// consider scores entries i < j once. The lower index is the first
// encountered and keeps survivorship on equal quality.
func (p *pass) consider(i, j int) {
	a, b := p.entries[i], p.entries[j]
	if p.cross && a.side == b.side {
		return
	}
	if !p.cross && a.ranked.Record.ID == b.ranked.Record.ID {
		return
	}

	pairID := fingerprint.Pair(p.pairKey(a), p.pairKey(b))
	if p.seen[pairID] {
		return
	}
	p.seen[pairID] = true

	score := p.f.scorer.ScoreMatch(a.ranked.Record, b.ranked.Record)
	if score.Confidence < p.f.cfg.MinConfidence && !score.IsConflict {
		return
	}

	survivor, merged := a.ranked, b.ranked
	if merged.Score > survivor.Score {
		survivor, merged = merged, survivor
	}
	p.candidates = append(p.candidates, models.MatchCandidate{
		ID:         pairID,
		Survivor:   survivor,
		Merged:     merged,
		Tier:       score.Tier,
		Confidence: score.Confidence,
		Reasons:    score.Reasons,
		Conflicts:  score.Conflicts,
		IsConflict: score.IsConflict,
	})
}

func (p *pass) pairKey(e entry) string {
	if !p.cross {
		return e.ranked.Record.ID
	}
	if e.side == 0 {
		return "left:" + e.ranked.Record.ID
	}
	return "right:" + e.ranked.Record.ID
}

func (p *pass) report(phase models.ScanPhase, processed, total int) {
	if p.f.observer == nil {
		return
	}
	if processed%p.f.every != 0 && processed != total {
		return
	}
	p.f.observer.ScanProgress(models.ScanProgress{
		Phase:      phase,
		Processed:  processed,
		Total:      total,
		Candidates: len(p.candidates),
	})
}
