package models

import "time"

// NormalizedName is the comparable form of a person's name. It is derived on
// demand and never persisted.
type NormalizedName struct {
	Canonical  string   `json:"canonical"`
	Variants   []string `json:"variants"`
	Honorifics []string `json:"honorifics,omitempty"`
	Suffixes   []string `json:"suffixes,omitempty"`
	Parts      []string `json:"parts"`
}

// NameMatchReason explains how two names were judged similar
type NameMatchReason string

const (
	NameMatchExactCanonical  NameMatchReason = "exact_canonical"
	NameMatchNicknameVariant NameMatchReason = "nickname_variant"
	NameMatchFuzzy           NameMatchReason = "fuzzy_match"
	NameMatchSharedParts     NameMatchReason = "shared_parts"
	NameMatchNone            NameMatchReason = "no_match"
)

// NameMatch is the result of comparing two normalized names
type NameMatch struct {
	Match  bool            `json:"match"`
	Score  int             `json:"score"`
	Reason NameMatchReason `json:"reason"`
}

// Tier is an ordinal confidence bucket; lower is better
type Tier int

const (
	TierDefinitive  Tier = 1
	TierStrong      Tier = 2
	TierPossible    Tier = 3
	TierInvestigate Tier = 4
)

func (t Tier) String() string {
	switch t {
	case TierDefinitive:
		return "Definitive"
	case TierStrong:
		return "Strong"
	case TierPossible:
		return "Possible"
	default:
		return "Investigate"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Definitive":
		*t = TierDefinitive
	case "Strong":
		*t = TierStrong
	case "Possible":
		*t = TierPossible
	default:
		*t = TierInvestigate
	}
	return nil
}

// MatchScore is the outcome of scoring one pair of records
type MatchScore struct {
	Tier       Tier     `json:"tier"`
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Conflicts  []string `json:"conflicts"`
	IsConflict bool     `json:"is_conflict"`
}

// RankedRecord is a record with its quality score and display name
type RankedRecord struct {
	Record      Record `json:"record"`
	Score       int    `json:"score"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

// MatchCandidate is a scored pair of records that likely describe the same entity
type MatchCandidate struct {
	ID         string       `json:"id"`
	Survivor   RankedRecord `json:"survivor"`
	Merged     RankedRecord `json:"merged"`
	Tier       Tier         `json:"tier"`
	Confidence int          `json:"confidence"`
	Reasons    []string     `json:"reasons"`
	Conflicts  []string     `json:"conflicts"`
	IsConflict bool         `json:"is_conflict"`
}

// MergeGroup is a connected component of candidates with an elected survivor
type MergeGroup struct {
	ID                string           `json:"id"`
	Records           []RankedRecord   `json:"records"`
	Matches           []MatchCandidate `json:"matches"`
	Survivor          RankedRecord     `json:"survivor"`
	ToMerge           []RankedRecord   `json:"to_merge"`
	BestTier          Tier             `json:"best_tier"`
	HighestConfidence int              `json:"highest_confidence"`
}

// ScanPhase names the stage a scan is in when progress is reported
type ScanPhase string

const (
	ScanPhaseBuckets     ScanPhase = "buckets"
	ScanPhaseIdentifiers ScanPhase = "identifiers"
	ScanPhaseFuzzy       ScanPhase = "fuzzy"
)

// ScanProgress is reported periodically while candidates are generated
type ScanProgress struct {
	Phase      ScanPhase `json:"phase"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	Candidates int       `json:"candidates"`
}

// ScanSummary counts what a scan found
type ScanSummary struct {
	Records    int            `json:"records"`
	Candidates int            `json:"candidates"`
	Groups     int            `json:"groups"`
	Conflicts  int            `json:"conflicts"`
	ByTier     map[string]int `json:"by_tier"`
}

// ScanSession holds one scan's results between the scan and the merges it drives
type ScanSession struct {
	ID         string           `json:"id"`
	Table      string           `json:"table"`
	Candidates []MatchCandidate `json:"candidates"`
	Groups     []MergeGroup     `json:"groups"`
	Summary    ScanSummary      `json:"summary"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Group returns the session's group with the given id
func (s *ScanSession) Group(id string) (MergeGroup, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return MergeGroup{}, false
}
