package records

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
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
)

type fakeService struct {
	unmerges []processor.UnmergeRequest
}

func (f *fakeService) History(_ context.Context, _, recordID string) ([]models.HistoryEntry, error) {
	if recordID != "rec1" {
		return nil, errors.NewNotFoundError("record not found").WithRecord(recordID)
	}
	return []models.HistoryEntry{{MergeID: "merge_1", Action: models.HistoryActionMerge}}, nil
}

func (f *fakeService) Unmerge(_ context.Context, _ string, reqs []processor.UnmergeRequest, _ string) (models.BatchSummary, error) {
	f.unmerges = append(f.unmerges, reqs...)
	return models.BatchSummary{Succeeded: len(reqs)}, nil
}

type fakeSchemas struct {
	saved models.Schema
}

func (f *fakeSchemas) UpsertSchema(_ context.Context, s models.Schema) error {
	f.saved = s
	return nil
}

type fakeLineage struct{}

func (fakeLineage) Lineage(_ context.Context, _, recordID string) ([]graph.LineageEdge, error) {
	return []graph.LineageEdge{{From: "rec2", To: recordID, Type: graph.RelMergedInto, MergeID: "merge_1"}}, nil
}

func newServer(svc Service, schemas SchemaWriter, lineage LineageReader) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(svc, schemas, lineage, logger).Register(e.Group(""))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHistory(t *testing.T) {
	e := newServer(&fakeService{}, &fakeSchemas{}, nil)

	rec := do(e, http.MethodGet, "/tables/Clients/records/rec1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "merge_1", entries[0].MergeID)

	rec = do(e, http.MethodGet, "/tables/Clients/records/rec9/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnmerge(t *testing.T) {
	svc := &fakeService{}
	e := newServer(svc, &fakeSchemas{}, nil)

	rec := do(e, http.MethodPost, "/tables/Clients/records/rec1/unmerge", `{"merge_id":"merge_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []processor.UnmergeRequest{{SurvivorID: "rec1", MergeID: "merge_1"}}, svc.unmerges)

	rec = do(e, http.MethodPost, "/tables/Clients/records/rec1/unmerge", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLineage(t *testing.T) {
	rec := do(newServer(&fakeService{}, &fakeSchemas{}, nil), http.MethodGet, "/tables/Clients/records/rec1/lineage", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(newServer(&fakeService{}, &fakeSchemas{}, fakeLineage{}), http.MethodGet, "/tables/Clients/records/rec1/lineage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var edges []graph.LineageEdge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edges))
	require.Len(t, edges, 1)
	assert.Equal(t, "rec1", edges[0].To)
}

func TestPutSchema(t *testing.T) {
	schemas := &fakeSchemas{}
	e := newServer(&fakeService{}, schemas, nil)

	rec := do(e, http.MethodPut, "/tables/Clients/schema", `{"fields":{"Name":{"type":"text"},"Visits":{"type":"link"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Clients", schemas.saved.TableName)
	assert.True(t, schemas.saved.IsLink("Visits"))

	rec = do(e, http.MethodPut, "/tables/Clients/schema", `{"fields":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
