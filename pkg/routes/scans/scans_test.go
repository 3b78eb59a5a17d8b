package scans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
)

type fakeService struct {
	scanned    string
	selections []processor.GroupSelection
	notes      string
	summary    models.BatchSummary
	err        error
}

func (f *fakeService) Scan(_ context.Context, table string, _ matching.ProgressObserver) (*models.ScanSession, error) {
	f.scanned = table
	return &models.ScanSession{ID: "scan_1", Table: table}, f.err
}

func (f *fakeService) GetScan(_ context.Context, id string) (*models.ScanSession, error) {
	if id != "scan_1" {
		return nil, errors.NewNotFoundError("scan session %q not found or expired", id)
	}
	return &models.ScanSession{ID: id, Table: "Clients"}, nil
}

func (f *fakeService) MergeScan(_ context.Context, _ string, selections []processor.GroupSelection, notes string) (models.BatchSummary, error) {
	f.selections = selections
	f.notes = notes
	return f.summary, f.err
}

func (f *fakeService) Compare(_ context.Context, _, _ string) ([]models.MatchCandidate, error) {
	return []models.MatchCandidate{}, f.err
}

func newServer(svc Service) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(svc, logger).Register(e.Group(""))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateScan(t *testing.T) {
	svc := &fakeService{}
	rec := do(newServer(svc), http.MethodPost, "/tables/Clients/scans", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Clients", svc.scanned)

	var session models.ScanSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "scan_1", session.ID)
}

func TestGetScan_NotFound(t *testing.T) {
	rec := do(newServer(&fakeService{}), http.MethodGet, "/scans/scan_9", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "scan_9")
	assert.NotEmpty(t, body.RequestID)
}

func TestMerge(t *testing.T) {
	svc := &fakeService{summary: models.BatchSummary{Succeeded: 1}}
	rec := do(newServer(svc), http.MethodPost, "/scans/scan_1/merges",
		`{"groups":[{"group_id":"grp_1","decisions":{"Name":{"strategy":"keep_other","record_id":"rec1"}}}],"notes":"dupes"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.selections, 1)
	assert.Equal(t, "grp_1", svc.selections[0].GroupID)
	assert.Equal(t, models.ResolutionKeepOther, svc.selections[0].Decisions["Name"].Strategy)
	assert.Equal(t, "dupes", svc.notes)

	var summary models.BatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Succeeded)
}

func TestMerge_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no groups", `{"groups":[]}`},
		{"missing group id", `{"groups":[{"decisions":{}}]}`},
		{"unknown strategy", `{"groups":[{"group_id":"grp_1","decisions":{"Name":{"strategy":"coin_flip"}}}]}`},
		{"not json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := do(newServer(svc), http.MethodPost, "/scans/scan_1/merges", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.selections)
		})
	}
}

func TestMerge_PreconditionMapsToConflict(t *testing.T) {
	svc := &fakeService{err: errors.NewPreconditionError("record changed since the scan").WithRecord("rec1")}
	rec := do(newServer(svc), http.MethodPost, "/scans/scan_1/merges", `{"groups":[{"group_id":"grp_1"}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
