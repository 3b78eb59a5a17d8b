// Package record is the postgres implementation of the record store. Each
// logical table keeps its schema in record_tables and its rows as jsonb
// field maps in records.
package record

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expressions"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	tablesTable  = "record_tables"
	recordsTable = "records"
)

var _ store.Store = (*Repository)(nil)

type recordRow struct {
	ID     string                        `db:"id"`
	Fields database.JSONB[models.Fields] `db:"fields"`
}

type schemaRow struct {
	Name   string                                      `db:"name"`
	Schema database.JSONB[map[string]models.FieldInfo] `db:"schema"`
}

// Repository handles record persistence
type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	evaluator *expressions.Evaluator
	now       func() time.Time
}

// NewRepository creates a new record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:        db,
		logger:    logger,
		evaluator: expressions.NewEvaluator(),
		now:       time.Now,
	}
}

// UpsertSchema registers a table or replaces its field layout
func (r *Repository) UpsertSchema(ctx context.Context, schema models.Schema) error {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.UpsertSchema", tracing.Table(schema.TableName))
	defer span.End()

	now := r.now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(tablesTable)
	ib.Cols("name", "schema", "created_at", "updated_at")
	ib.Values(schema.TableName, database.NewJSONB(schema.Fields), now, now)
	ub := ib.OnConflict("name")
	ub.Set(
		ub.Assign("schema", database.Excluded("schema")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert table schema")
		return errors.WrapExternalIO(err, "upsert schema")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": schema.TableName, "fields": len(schema.Fields)}).Info("Upserted table schema")
	return nil
}

// FetchSchema returns a table's field layout
func (r *Repository) FetchSchema(ctx context.Context, table string) (models.Schema, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.FetchSchema", tracing.Table(table))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("name", "schema")
	sb.From(tablesTable)
	sb.Where(sb.Equal("name", table))

	query, args := sb.Build()
	var row schemaRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.Schema{}, errors.NewNotFoundError("table %q not found", table)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch table schema")
		return models.Schema{}, errors.WrapExternalIO(err, "fetch schema")
	}

	fields := row.Schema.GetValue()
	if fields == nil {
		fields = map[string]models.FieldInfo{}
	}
	return models.Schema{TableName: row.Name, Fields: fields}, nil
}

// FetchAllRecords returns every record of the table in insertion order,
// coerced to the schema and narrowed by opts
func (r *Repository) FetchAllRecords(ctx context.Context, table string, opts store.FetchOptions) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.FetchAllRecords", tracing.Table(table))
	defer span.End()

	schema, err := r.FetchSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	if opts.Filter != "" {
		if err := r.evaluator.Validate(opts.Filter); err != nil {
			return nil, err
		}
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "fields")
	sb.From(recordsTable)
	conds := []string{sb.Equal("table_name", table)}
	if len(opts.IDs) > 0 {
		conds = append(conds, sb.In("id", database.StringArgs(opts.IDs)...))
	}
	sb.Where(conds...)
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch records")
		return nil, errors.WrapExternalIO(err, "fetch records")
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row, schema))
	}

	records, err = r.evaluator.Filter(opts.Filter, records)
	if err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "count": len(records)}).Debug("Fetched records")
	return store.Project(records, opts.Fields), nil
}

// GetRecord returns one record
func (r *Repository) GetRecord(ctx context.Context, table, id string) (models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.GetRecord", tracing.Table(table), tracing.RecordID(id))
	defer span.End()

	schema, err := r.FetchSchema(ctx, table)
	if err != nil {
		return models.Record{}, err
	}

	return r.getRecord(ctx, r.db, schema, table, id)
}

// getter is satisfied by both the pool and a transaction
type getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func (r *Repository) getRecord(ctx context.Context, q getter, schema models.Schema, table, id string) (models.Record, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "fields")
	sb.From(recordsTable)
	sb.Where(sb.Equal("table_name", table), sb.Equal("id", id))

	query, args := sb.Build()
	var row recordRow
	if err := q.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.Record{}, errors.NewNotFoundError("record not found").WithRecord(id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get record")
		return models.Record{}, errors.WrapExternalIO(err, "get record")
	}
	return toRecord(row, schema), nil
}

// UpdateRecord overlays fields onto a record. Computed fields are dropped
// because the store derives them.
func (r *Repository) UpdateRecord(ctx context.Context, table, id string, fields models.Fields) (models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.UpdateRecord", tracing.Table(table), tracing.RecordID(id))
	defer span.End()

	schema, err := r.FetchSchema(ctx, table)
	if err != nil {
		return models.Record{}, err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(recordsTable)
	ub.Set(
		fmt.Sprintf("fields = fields || %s::jsonb", ub.Var(database.NewJSONB(writable(fields, schema)))),
		ub.Assign("updated_at", r.now().UTC()),
	)
	ub.Where(ub.Equal("table_name", table), ub.Equal("id", id))

	// the write and the read back share a transaction so the caller sees
	// exactly the row it produced
	var updated models.Record
	query, args := ub.Build()
	err = database.WithTx(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to update record")
			return errors.WrapExternalIO(err, "update record")
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return errors.NewNotFoundError("record not found").WithRecord(id)
		}
		updated, err = r.getRecord(ctx, tx, schema, table, id)
		return err
	})
	if err != nil {
		return models.Record{}, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "id": id, "fields": len(fields)}).Info("Updated record")
	return updated, nil
}

// DeleteRecords removes records by id. Ids that do not exist are ignored.
func (r *Repository) DeleteRecords(ctx context.Context, table string, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.DeleteRecords", tracing.Table(table))
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	del := database.NewDeleteBuilder()
	del.DeleteFrom(recordsTable)
	del.Where(del.Equal("table_name", table), del.In("id", database.StringArgs(ids)...))

	query, args := del.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete records")
		return errors.WrapExternalIO(err, "delete records")
	}

	n, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "requested": len(ids), "deleted": n}).Info("Deleted records")
	return nil
}

// CreateRecord inserts a record under a new id
func (r *Repository) CreateRecord(ctx context.Context, table string, fields models.Fields) (models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.CreateRecord", tracing.Table(table))
	defer span.End()

	schema, err := r.FetchSchema(ctx, table)
	if err != nil {
		return models.Record{}, err
	}

	id := uuid.New().String()
	now := r.now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(recordsTable)
	ib.Cols("id", "table_name", "fields", "created_at", "updated_at")
	ib.Values(id, table, database.NewJSONB(writable(fields, schema)), now, now)

	var created models.Record
	query, args := ib.Build()
	err = database.WithTx(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to create record")
			return errors.WrapExternalIO(err, "create record")
		}
		rec, err := r.getRecord(ctx, tx, schema, table, id)
		created = rec
		return err
	})
	if err != nil {
		return models.Record{}, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "id": id}).Info("Created record")
	return created, nil
}

func toRecord(row recordRow, schema models.Schema) models.Record {
	fields := row.Fields.GetValue()
	if fields == nil {
		fields = models.Fields{}
	}
	return models.Record{ID: row.ID, Fields: schema.Coerce(fields)}
}

func writable(fields models.Fields, schema models.Schema) models.Fields {
	out := make(models.Fields, len(fields))
	for name, v := range fields {
		if !schema.IsComputed(name) {
			out[name] = v
		}
	}
	return out
}
