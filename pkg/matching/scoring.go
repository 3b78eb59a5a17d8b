package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

const (
	minPhoneDigits      = 10
	addressSimilarityAt = 80
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Scorer compares two records under one dedup configuration
type Scorer struct {
	cfg          models.DedupConfig
	placeholders []string
	chains       map[string]normalizers.Normalizer
}

// NewScorer creates a new Scorer
func NewScorer(cfg models.DedupConfig) *Scorer {
	cfg = cfg.WithDefaults()
	s := &Scorer{
		cfg: cfg,
		placeholders: ectolinq.Map(cfg.PlaceholderEmails, func(e string) string {
			return normalizers.NormalizeEmail(e)
		}),
		chains: make(map[string]normalizers.Normalizer, len(cfg.Normalizers)),
	}
	// invalid chains are reported by the finder; here they keep the default
	for field, names := range cfg.Normalizers {
		if fn, err := normalizers.Chain(names...); err == nil {
			s.chains[field] = fn
		}
	}
	return s
}

// normalizer returns the chain configured for field, or fallback
func (s *Scorer) normalizer(field string, fallback normalizers.Normalizer) normalizers.Normalizer {
	if fn, ok := s.chains[field]; ok {
		return fn
	}
	return fallback
}

// ScoreMatch scores a pair of records. Conflicting unique identifiers win
// over everything else; an exact identifier match is definitive; otherwise
// name similarity is the base and corroborating fields add to it.
func (s *Scorer) ScoreMatch(a, b models.Record) models.MatchScore {
	result := models.MatchScore{Reasons: []string{}, Conflicts: []string{}}
	confidence := 0

	for _, field := range s.cfg.UniqueIDFields {
		va, vb := a.Get(field), b.Get(field)
		if va.IsEmpty() || vb.IsEmpty() {
			continue
		}
		normalize := s.normalizer(field, normalizers.NormalizeIdentifier)
		if normalize(va.String()) == normalize(vb.String()) {
			confidence = 100
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s exact match", field))
		} else {
			result.Conflicts = append(result.Conflicts, fmt.Sprintf("%s conflict: %s vs %s", field, va.String(), vb.String()))
		}
	}

	if len(result.Conflicts) > 0 {
		result.Tier = models.TierInvestigate
		result.Confidence = max(confidence, s.cfg.Tiers.Conflict)
		result.IsConflict = true
		return result
	}

	if confidence >= 100 {
		result.Tier = models.TierDefinitive
		result.Confidence = 100
		return result
	}

	nameA := normalizers.NormalizeName(s.fullName(a))
	nameB := normalizers.NormalizeName(s.fullName(b))
	if nm := normalizers.AreNamesSimilar(nameA, nameB, s.cfg.NameThreshold); nm.Match {
		confidence = max(confidence, nm.Score)
		result.Reasons = append(result.Reasons, nameReason(nm))
	}

	corroboration := 0
	addBonus := func(points int, reason string) {
		confidence = min(confidence+points, 100)
		corroboration++
		result.Reasons = append(result.Reasons, reason)
	}

	bonus := s.cfg.Bonuses
	if s.phonesMatch(a, b) {
		addBonus(bonus.Phone, "Phone exact match")
	}
	if s.emailsMatch(a, b) {
		addBonus(bonus.Email, "Email exact match")
	}
	if s.dobMatch(a, b) {
		addBonus(bonus.DOB, "DOB exact match")
	}
	if sim, ok := s.addressSimilarity(a, b); ok && sim >= addressSimilarityAt {
		addBonus(bonus.Address, fmt.Sprintf("Address similar (%d%%)", sim))
	}

	tiers := s.cfg.Tiers
	switch {
	case confidence >= 100:
		result.Tier = models.TierDefinitive
	case confidence >= tiers.Strong, confidence >= tiers.Corroborated && corroboration > 0:
		result.Tier = models.TierStrong
	case confidence >= tiers.Possible:
		result.Tier = models.TierPossible
	default:
		confidence = tiers.Possible
		result.Tier = models.TierPossible
	}
	result.Confidence = confidence
	return result
}

// FullName composes the record's name from the configured name fields
func (s *Scorer) FullName(rec models.Record) string {
	return s.fullName(rec)
}

func (s *Scorer) fullName(rec models.Record) string {
	field := func(name string) string {
		if name == "" {
			return ""
		}
		return rec.Get(name).String()
	}
	return normalizers.FullName(field(s.cfg.FirstNameField), field(s.cfg.LastNameField), field(s.cfg.FullNameField))
}

func nameReason(nm models.NameMatch) string {
	switch nm.Reason {
	case models.NameMatchExactCanonical:
		return "Name exact match"
	case models.NameMatchNicknameVariant:
		return fmt.Sprintf("Name nickname match (%d)", nm.Score)
	case models.NameMatchSharedParts:
		return fmt.Sprintf("Name shares all parts of the shorter name (%d)", nm.Score)
	default:
		return fmt.Sprintf("Name similar (%d)", nm.Score)
	}
}

// collect normalizes every value of fields, each through its own chain
func (s *Scorer) collect(rec models.Record, fields []string, fallback normalizers.Normalizer) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		v := rec.Get(f)
		if v.IsEmpty() {
			continue
		}
		normalize := s.normalizer(f, fallback)
		items := v.Items()
		if items == nil {
			items = []string{v.String()}
		}
		for _, item := range items {
			if n := normalize(item); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if ectolinq.Contains(b, x) {
			return true
		}
	}
	return false
}

func (s *Scorer) phonesMatch(a, b models.Record) bool {
	keep := func(p []string) []string {
		return ectolinq.Filter(p, func(n string) bool { return len(n) >= minPhoneDigits })
	}
	return intersects(
		keep(s.collect(a, s.cfg.PhoneFields, normalizers.NormalizePhone)),
		keep(s.collect(b, s.cfg.PhoneFields, normalizers.NormalizePhone)),
	)
}

func (s *Scorer) emailsMatch(a, b models.Record) bool {
	keep := func(e []string) []string {
		return ectolinq.Filter(e, func(n string) bool { return !ectolinq.Contains(s.placeholders, n) })
	}
	return intersects(
		keep(s.collect(a, s.cfg.EmailFields, normalizers.NormalizeEmail)),
		keep(s.collect(b, s.cfg.EmailFields, normalizers.NormalizeEmail)),
	)
}

func (s *Scorer) dobMatch(a, b models.Record) bool {
	if s.cfg.DOBField == "" {
		return false
	}
	va, vb := a.Get(s.cfg.DOBField), b.Get(s.cfg.DOBField)
	if va.IsEmpty() || vb.IsEmpty() {
		return false
	}
	da, okA := parseDate(va.String())
	db, okB := parseDate(vb.String())
	if okA && okB {
		return da.Equal(db)
	}
	return strings.EqualFold(strings.TrimSpace(va.String()), strings.TrimSpace(vb.String()))
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func (s *Scorer) addressSimilarity(a, b models.Record) (int, bool) {
	join := func(rec models.Record) string {
		return strings.Join(s.collect(rec, s.cfg.AddressFields, normalizers.NormalizeAddress), " ")
	}
	addrA, addrB := join(a), join(b)
	if addrA == "" || addrB == "" {
		return 0, false
	}
	return normalizers.StringSimilarity(addrA, addrB), true
}
