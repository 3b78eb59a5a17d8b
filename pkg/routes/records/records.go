// Package records serves per-record history, unmerge and lineage, and table
// schema registration
package records

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// Service is the part of the processor the record routes use
type Service interface {
	History(ctx context.Context, table, recordID string) ([]models.HistoryEntry, error)
	Unmerge(ctx context.Context, table string, reqs []processor.UnmergeRequest, notes string) (models.BatchSummary, error)
}

// SchemaWriter registers table layouts
type SchemaWriter interface {
	UpsertSchema(ctx context.Context, schema models.Schema) error
}

// LineageReader reads the merge lineage graph
type LineageReader interface {
	Lineage(ctx context.Context, table, recordID string) ([]graph.LineageEdge, error)
}

// Handler handles record API endpoints. lineage may be nil when the graph
// is not configured.
type Handler struct {
	service Service
	schemas SchemaWriter
	lineage LineageReader
	logger  ectologger.Logger
}

func NewHandler(service Service, schemas SchemaWriter, lineage LineageReader, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		schemas: schemas,
		lineage: lineage,
		logger:  logger,
	}
}

// Register registers the record routes
func (h *Handler) Register(g *echo.Group) {
	g.PUT("/tables/:table/schema", h.PutSchema)
	g.GET("/tables/:table/records/:id/history", h.History)
	g.POST("/tables/:table/records/:id/unmerge", h.Unmerge)
	g.GET("/tables/:table/records/:id/lineage", h.Lineage)
}

// History returns a record's merge history
func (h *Handler) History(c echo.Context) error {
	entries, err := h.service.History(c.Request().Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// UnmergeRequest is the request body for reversing a merge
type UnmergeRequest struct {
	MergeID string `json:"merge_id" validate:"required"`
	Notes   string `json:"notes"`
}

// Unmerge reverses one merge on the record
func (h *Handler) Unmerge(c echo.Context) error {
	ctx := c.Request().Context()

	var req UnmergeRequest
	if err := validation.BindRequest(c, &req); err != nil {
		return err
	}

	summary, err := h.service.Unmerge(ctx, c.Param("table"), []processor.UnmergeRequest{{
		SurvivorID: c.Param("id"),
		MergeID:    req.MergeID,
	}}, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// Lineage returns the merge lineage edges touching the record
func (h *Handler) Lineage(c echo.Context) error {
	if h.lineage == nil {
		return errors.NewNotFoundError("lineage is not enabled")
	}
	edges, err := h.lineage.Lineage(c.Request().Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		return errors.WrapExternalIO(err, "read lineage")
	}
	return c.JSON(http.StatusOK, edges)
}

// SchemaRequest is the request body for registering a table
type SchemaRequest struct {
	Fields map[string]models.FieldInfo `json:"fields" validate:"required,min=1"`
}

// PutSchema registers or replaces a table's field layout
func (h *Handler) PutSchema(c echo.Context) error {
	ctx := c.Request().Context()

	var req SchemaRequest
	if err := validation.BindRequest(c, &req); err != nil {
		return err
	}

	schema := models.Schema{TableName: c.Param("table"), Fields: req.Fields}
	if err := h.schemas.UpsertSchema(ctx, schema); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema)
}
