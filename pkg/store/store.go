// Package store defines the tabular record store the engine reads from and
// writes merge results to
package store

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// FetchOptions narrows FetchAllRecords
type FetchOptions struct {
	// Fields limits the returned fields; empty returns every field
	Fields []string
	// Filter is a boolean expression evaluated against each record's fields
	Filter string
	// IDs limits the result to these records
	IDs []string
}

// Store is implemented by the record backend. Every method returns
// NotFound or ExternalIO errors from pkg/errors.
type Store interface {
	FetchSchema(ctx context.Context, table string) (models.Schema, error)
	// FetchAllRecords returns every matching record; paging is the store's concern
	FetchAllRecords(ctx context.Context, table string, opts FetchOptions) ([]models.Record, error)
	GetRecord(ctx context.Context, table, id string) (models.Record, error)
	UpdateRecord(ctx context.Context, table, id string, fields models.Fields) (models.Record, error)
	DeleteRecords(ctx context.Context, table string, ids []string) error
	CreateRecord(ctx context.Context, table string, fields models.Fields) (models.Record, error)
}

// Project keeps only the named fields of each record
func Project(records []models.Record, fields []string) []models.Record {
	if len(fields) == 0 {
		return records
	}
	out := make([]models.Record, len(records))
	for i, rec := range records {
		projected := make(models.Fields, len(fields))
		for _, f := range fields {
			if v, ok := rec.Fields[f]; ok {
				projected[f] = v
			}
		}
		out[i] = models.Record{ID: rec.ID, Fields: projected}
	}
	return out
}
