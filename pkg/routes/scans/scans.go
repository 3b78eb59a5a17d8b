// Package scans serves duplicate scans and the batch merges that follow them
package scans

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// Service is the part of the processor the scan routes use
type Service interface {
	Scan(ctx context.Context, table string, observer matching.ProgressObserver) (*models.ScanSession, error)
	GetScan(ctx context.Context, id string) (*models.ScanSession, error)
	MergeScan(ctx context.Context, scanID string, selections []processor.GroupSelection, notes string) (models.BatchSummary, error)
	Compare(ctx context.Context, left, right string) ([]models.MatchCandidate, error)
}

// Handler handles scan API endpoints
type Handler struct {
	service Service
	logger  ectologger.Logger
}

func NewHandler(service Service, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers the scan routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/tables/:table/scans", h.CreateScan)
	g.POST("/tables/:table/compare/:other", h.Compare)
	g.GET("/scans/:id", h.GetScan)
	g.POST("/scans/:id/merges", h.Merge)
}

// CreateScan scans a table for duplicates
func (h *Handler) CreateScan(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.service.Scan(ctx, c.Param("table"), nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetScan(c echo.Context) error {
	session, err := h.service.GetScan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// MergeRequest is the request body for merging scanned groups
type MergeRequest struct {
	Groups []processor.GroupSelection `json:"groups" validate:"required,min=1,dive"`
	Notes  string                     `json:"notes"`
}

// Merge merges the selected groups of a scan
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	var req MergeRequest
	if err := validation.BindRequest(c, &req); err != nil {
		return err
	}

	summary, err := h.service.MergeScan(ctx, c.Param("id"), req.Groups, req.Notes)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"scan_id":   c.Param("id"),
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Merged scan groups")
	return c.JSON(http.StatusOK, summary)
}

// Compare finds duplicates between two tables
func (h *Handler) Compare(c echo.Context) error {
	candidates, err := h.service.Compare(c.Request().Context(), c.Param("table"), c.Param("other"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidates)
}
