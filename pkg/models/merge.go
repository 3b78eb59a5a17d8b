package models

import (
	"sort"
	"time"
)

// ResolutionStrategy defines how a field's value is chosen when records merge
type ResolutionStrategy string

const (
	// ResolutionAuto means every source agrees or only one source has data
	ResolutionAuto ResolutionStrategy = "auto"
	// ResolutionKeepSurvivor keeps the survivor's value
	ResolutionKeepSurvivor ResolutionStrategy = "keep_survivor"
	// ResolutionKeepOther takes the value of one subsumed record
	ResolutionKeepOther ResolutionStrategy = "keep_other"
	// ResolutionConcatenate joins every distinct value with the configured delimiter
	ResolutionConcatenate ResolutionStrategy = "concatenate"
	// ResolutionMergeLinks unions linked record ids
	ResolutionMergeLinks ResolutionStrategy = "merge_links"
	// ResolutionAppend takes a caller supplied value
	ResolutionAppend ResolutionStrategy = "append"
	// ResolutionManual marks a true conflict awaiting a decision
	ResolutionManual ResolutionStrategy = "manual"
	// ResolutionExcluded fields are never written
	ResolutionExcluded ResolutionStrategy = "excluded"
	// ResolutionComputed fields are derived by the store
	ResolutionComputed ResolutionStrategy = "computed"
)

// SourceValue is one record's value for a field
type SourceValue struct {
	RecordID   string `json:"record_id"`
	IsSurvivor bool   `json:"is_survivor"`
	Value      Value  `json:"value"`
}

// FieldResolution decides one field of a merge
type FieldResolution struct {
	Field         string             `json:"field"`
	Strategy      ResolutionStrategy `json:"strategy"`
	Value         Value              `json:"value"`
	Include       bool               `json:"include"`
	NeedsDecision bool               `json:"needs_decision"`
	Sources       []SourceValue      `json:"sources,omitempty"`
}

// Resolutions is keyed by field name
type Resolutions map[string]FieldResolution

// Pending returns the fields still awaiting a manual decision, sorted
func (r Resolutions) Pending() []string {
	out := make([]string, 0)
	for name, res := range r {
		if res.NeedsDecision {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Decision resolves a manual field. RecordID selects a subsumed record's
// value for keep_other; Value carries the custom value for append.
type Decision struct {
	Strategy ResolutionStrategy `json:"strategy" validate:"required,oneof=keep_survivor keep_other append"`
	RecordID string             `json:"record_id,omitempty"`
	Value    Value              `json:"value"`
}

// HistoryAction is the kind of audit entry
type HistoryAction string

const (
	HistoryActionMerge   HistoryAction = "merge"
	HistoryActionUnmerge HistoryAction = "unmerge"
)

// MergedRecordSnapshot captures a subsumed record as it was before the merge
type MergedRecordSnapshot struct {
	OriginalRecordID string              `json:"original_record_id"`
	FieldSnapshot    Fields              `json:"field_snapshot"`
	LinkedRecords    map[string][]string `json:"linked_records"`
	Checksum         string              `json:"checksum,omitempty"`
	RecreatedID      string              `json:"recreated_id,omitempty"`
}

// FieldDecision records how one field was resolved. Previous holds the
// survivor's pre-merge links for merge_links fields only.
type FieldDecision struct {
	Strategy ResolutionStrategy `json:"strategy"`
	Value    Value              `json:"value"`
	Previous []string           `json:"previous,omitempty"`
}

// HistoryEntry is one append-only audit record stored on the survivor
type HistoryEntry struct {
	MergeID          string                   `json:"merge_id"`
	Timestamp        time.Time                `json:"timestamp"`
	Action           HistoryAction            `json:"action"`
	SurvivorRecordID string                   `json:"survivor_record_id"`
	OriginalMergeID  string                   `json:"original_merge_id,omitempty"`
	MergedRecords    []MergedRecordSnapshot   `json:"merged_records"`
	FieldDecisions   map[string]FieldDecision `json:"field_decisions"`
	PerformedBy      string                   `json:"performed_by"`
	Notes            string                   `json:"notes"`
}

// MergeOptions carries who performed a merge and the clock/id sources
type MergeOptions struct {
	PerformedBy  string
	Notes        string
	HistoryField string
	Now          func() time.Time
	NewID        func() string
}

// MergePayload is everything the store needs to apply a merge
type MergePayload struct {
	MergeID         string       `json:"merge_id"`
	SurvivorID      string       `json:"survivor_id"`
	HistoryEntry    HistoryEntry `json:"history_entry"`
	UpdateFields    Fields       `json:"update_fields"`
	RecordsToDelete []string     `json:"records_to_delete"`
	HistoryWasLossy bool         `json:"history_was_lossy"`
}

// RecordToCreate is a subsumed record reconstructed for recreation
type RecordToCreate struct {
	OriginalRecordID string `json:"original_record_id"`
	Fields           Fields `json:"fields"`
}

// UnmergePayload is everything the store needs to reverse a merge
type UnmergePayload struct {
	UnmergeID           string           `json:"unmerge_id"`
	OriginalMergeID     string           `json:"original_merge_id"`
	SurvivorID          string           `json:"survivor_id"`
	RecordsToCreate     []RecordToCreate `json:"records_to_create"`
	SurvivorUpdates     Fields           `json:"survivor_updates"`
	UnmergeHistoryEntry HistoryEntry     `json:"unmerge_history_entry"`
	HistoryWasLossy     bool             `json:"history_was_lossy"`
}

// OutcomeStatus is the result of one group or unmerge in a batch
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	// OutcomePartial means some store writes landed and others did not
	OutcomePartial OutcomeStatus = "partial"
)

// BatchOutcome reports one unit of a batch merge or unmerge
type BatchOutcome struct {
	Key        string        `json:"key"`
	Status     OutcomeStatus `json:"status"`
	MergeID    string        `json:"merge_id,omitempty"`
	SurvivorID string        `json:"survivor_id,omitempty"`
	Deleted    []string      `json:"deleted,omitempty"`
	Undeleted  []string      `json:"undeleted,omitempty"`
	Created    []string      `json:"created,omitempty"`
	Pending    []string      `json:"pending,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// BatchSummary is the deterministic report every batch operation ends with
type BatchSummary struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Partial   int            `json:"partial"`
	Outcomes  []BatchOutcome `json:"outcomes"`
}

// Add records an outcome and bumps its counter
func (s *BatchSummary) Add(o BatchOutcome) {
	switch o.Status {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomePartial:
		s.Partial++
	}
	s.Outcomes = append(s.Outcomes, o)
}
