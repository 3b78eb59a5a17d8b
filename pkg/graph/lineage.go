package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Relationship types written by the lineage service
const (
	RelMergedInto    = "MERGED_INTO"
	RelRecreatedFrom = "RECREATED_FROM"
)

const timeLayout = time.RFC3339

const mergeCypher = `
	MERGE (s:Record {table: $table, id: $survivor_id})
	WITH s
	UNWIND $merged_ids AS merged_id
	MERGE (m:Record {table: $table, id: merged_id})
	MERGE (m)-[r:MERGED_INTO {merge_id: $merge_id}]->(s)
	SET r.at = $at, r.performed_by = $performed_by, r.unmerged = false
`

const markUnmergedCypher = `
	MATCH (:Record {table: $table})-[r:MERGED_INTO {merge_id: $merge_id}]->(:Record {table: $table, id: $survivor_id})
	SET r.unmerged = true, r.unmerge_id = $unmerge_id, r.unmerged_at = $at
`

const recreatedCypher = `
	UNWIND $recreated AS rec
	MERGE (o:Record {table: $table, id: rec.original_id})
	MERGE (n:Record {table: $table, id: rec.new_id})
	MERGE (n)-[r:RECREATED_FROM {unmerge_id: $unmerge_id}]->(o)
	SET r.at = $at, r.performed_by = $performed_by, r.merge_id = $merge_id
`

const lineageCypher = `
	MATCH (from:Record {table: $table})-[r:MERGED_INTO|RECREATED_FROM]->(to:Record {table: $table})
	WHERE from.id = $id OR to.id = $id
	RETURN from.id AS from, to.id AS to, type(r) AS type, properties(r) AS props
	ORDER BY r.at, from.id
`

// LineageEdge is one MERGED_INTO or RECREATED_FROM relationship
type LineageEdge struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Type        string    `json:"type"`
	MergeID     string    `json:"merge_id"`
	UnmergeID   string    `json:"unmerge_id,omitempty"`
	At          time.Time `json:"at"`
	PerformedBy string    `json:"performed_by"`
	Unmerged    bool      `json:"unmerged"`
}

// LineageService keeps a graph of which records were merged into which
type LineageService struct {
	client *Client
	logger ectologger.Logger
}

func NewLineageService(client *Client, logger ectologger.Logger) *LineageService {
	return &LineageService{
		client: client,
		logger: logger,
	}
}

// RecordMerge links every subsumed record to the survivor
func (s *LineageService) RecordMerge(ctx context.Context, table string, p *models.MergePayload) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordMerge", tracing.MergeID(p.MergeID), tracing.RecordID(p.SurvivorID))
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"table":       table,
		"merge_id":    p.MergeID,
		"survivor_id": p.SurvivorID,
	})

	if err := s.client.writeLineage(ctx, table, "merge", statement{mergeCypher, mergeParams(p)}); err != nil {
		log.WithError(err).Error("Failed to record merge lineage")
		return err
	}

	log.Debug("Recorded merge lineage")
	return nil
}

// RecordUnmerge flags the original merge's edges as reverted and links each
// recreated record to the id it replaced
func (s *LineageService) RecordUnmerge(ctx context.Context, table string, p *models.UnmergePayload) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordUnmerge", tracing.UnmergeID(p.UnmergeID), tracing.MergeID(p.OriginalMergeID))
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"table":             table,
		"unmerge_id":        p.UnmergeID,
		"original_merge_id": p.OriginalMergeID,
	})

	params := unmergeParams(p)
	err := s.client.writeLineage(ctx, table, "unmerge",
		statement{markUnmergedCypher, params},
		statement{recreatedCypher, params},
	)
	if err != nil {
		log.WithError(err).Error("Failed to record unmerge lineage")
		return err
	}

	log.Debug("Recorded unmerge lineage")
	return nil
}

// Lineage returns every lineage edge touching the record, oldest first
func (s *LineageService) Lineage(ctx context.Context, table, recordID string) ([]LineageEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.Lineage", tracing.RecordID(recordID))
	defer span.End()

	edges := []LineageEdge{}
	err := s.client.readLineage(ctx, table, statement{lineageCypher, map[string]any{"id": recordID}}, func(rec *neo4j.Record) {
		edges = append(edges, edgeFromRecord(rec))
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read lineage")
		return nil, err
	}
	return edges, nil
}

func mergeParams(p *models.MergePayload) map[string]any {
	merged := make([]any, len(p.RecordsToDelete))
	for i, id := range p.RecordsToDelete {
		merged[i] = id
	}
	return map[string]any{
		"survivor_id":  p.SurvivorID,
		"merged_ids":   merged,
		"merge_id":     p.MergeID,
		"at":           p.HistoryEntry.Timestamp.UTC().Format(timeLayout),
		"performed_by": p.HistoryEntry.PerformedBy,
	}
}

func unmergeParams(p *models.UnmergePayload) map[string]any {
	recreated := make([]any, 0, len(p.UnmergeHistoryEntry.MergedRecords))
	for _, snap := range p.UnmergeHistoryEntry.MergedRecords {
		if snap.RecreatedID == "" {
			continue
		}
		recreated = append(recreated, map[string]any{
			"original_id": snap.OriginalRecordID,
			"new_id":      snap.RecreatedID,
		})
	}
	return map[string]any{
		"survivor_id":  p.SurvivorID,
		"merge_id":     p.OriginalMergeID,
		"unmerge_id":   p.UnmergeID,
		"recreated":    recreated,
		"at":           p.UnmergeHistoryEntry.Timestamp.UTC().Format(timeLayout),
		"performed_by": p.UnmergeHistoryEntry.PerformedBy,
	}
}

func edgeFromRecord(rec *neo4j.Record) LineageEdge {
	from, _ := rec.Get("from")
	to, _ := rec.Get("to")
	typ, _ := rec.Get("type")
	props, _ := rec.Get("props")
	return toEdge(asString(from), asString(to), asString(typ), asProps(props))
}

func toEdge(from, to, typ string, props map[string]any) LineageEdge {
	edge := LineageEdge{
		From:        from,
		To:          to,
		Type:        typ,
		MergeID:     asString(props["merge_id"]),
		UnmergeID:   asString(props["unmerge_id"]),
		PerformedBy: asString(props["performed_by"]),
	}
	if at, err := time.Parse(timeLayout, asString(props["at"])); err == nil {
		edge.At = at
	}
	if unmerged, ok := props["unmerged"].(bool); ok {
		edge.Unmerged = unmerged
	}
	return edge
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asProps(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}
