package events

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeRecordMerged   EventType = "record.merged"
	EventTypeRecordUnmerged EventType = "record.unmerged"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Table         string    `json:"table"`
	Timestamp     time.Time `json:"timestamp"`
	PerformedBy   string    `json:"performed_by,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// RecordMergedEvent is emitted after subsumed records were folded into a survivor
type RecordMergedEvent struct {
	BaseEvent
	MergeID       string        `json:"merge_id"`
	SurvivorID    string        `json:"survivor_id"`
	MergedIDs     []string      `json:"merged_ids"`
	UpdatedFields []string      `json:"updated_fields"`
	Updates       models.Fields `json:"updates,omitempty"`
	UndeletedIDs  []string      `json:"undeleted_ids,omitempty"`
}

// RecordUnmergedEvent is emitted after a merge was reversed
type RecordUnmergedEvent struct {
	BaseEvent
	UnmergeID       string            `json:"unmerge_id"`
	OriginalMergeID string            `json:"original_merge_id"`
	SurvivorID      string            `json:"survivor_id"`
	RecreatedIDs    map[string]string `json:"recreated_ids"`
}
