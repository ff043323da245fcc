package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildplane/takeoff-cli/internal/classify"
	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

type memStore struct {
	overrides map[model.ElementID]string
}

func (m *memStore) LoadOverrides(context.Context) (map[model.ElementID]string, error) {
	return m.overrides, nil
}

func (m *memStore) SaveOverrides(_ context.Context, o map[model.ElementID]string) error {
	m.overrides = o
	return nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	session := &model.Session{
		ID:       "test-session",
		LoadedAt: time.Now(),
		Models: []model.ModelInfo{
			{Index: 0, Filename: "office.ifc", Schema: "IFC4", ElementCount: 2},
		},
		Storeys: map[string]float64{"Level 1": 0},
		Elements: []model.ElementRecord{
			{
				Ref:        model.SessionRef{Model: 0, NativeID: 1},
				EntityType: "IfcWall",
				Name:       "Basic Wall",
				Storey:     "Level 1",
				SourceFile: "office.ifc",
				Properties: map[string]model.PropertyValue{
					"Pset_WallCommon.IsExternal":           model.BoolValue(true),
					"Qto_WallBaseQuantities.GrossSideArea": model.NumberValue(10),
				},
			},
			{
				Ref:        model.SessionRef{Model: 0, NativeID: 2},
				EntityType: "IfcDoor",
				Name:       "Single Door",
				Storey:     "Level 1",
				SourceFile: "office.ifc",
				Properties: map[string]model.PropertyValue{},
			},
		},
	}

	taxo := taxonomy.Default()
	engine := classify.NewEngine(taxo, session, &memStore{})
	engine.ClassifyAll()
	return New(engine, session, taxo)
}

func TestHandleModels(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Session string            `json:"session"`
		Models  []model.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-session", body.Session)
	require.Len(t, body.Models, 1)
	assert.Equal(t, "office.ifc", body.Models[0].Filename)
}

func TestHandleSetClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		key        string
		body       string
		wantStatus int
	}{
		{
			name:       "valid override",
			key:        "0:2",
			body:       `{"code":"B2030"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown code rejected",
			key:        "0:2",
			body:       `{"code":"Z9999"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed key",
			key:        "not-a-key",
			body:       `{"code":"B2030"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := testServer(t)
			req := httptest.NewRequest(http.MethodPost, "/api/classifications/"+tt.key, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router(nil).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestSetClassificationVisibleInAggregate(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	router := srv.Router(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/classifications/0:2", strings.NewReader(`{"code":"C3010"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/classifications/0:2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.ClassificationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "C3010", got.Code)
	assert.Equal(t, model.SourceManual, got.Source)
}

func TestHandleElement(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	router := srv.Router(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/elements/0:1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Element        model.ElementRecord        `json:"element"`
		Classification model.ClassificationRecord `json:"classification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "IfcWall", body.Element.EntityType)
	assert.Equal(t, "B2010", body.Classification.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/elements/9:9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBulkAssign(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/classifications/bulk",
		strings.NewReader(`{"entity_type":"IfcDoor","code":"B2030"}`))
	rec := httptest.NewRecorder()
	srv.Router(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["assigned"])
}

func TestHandleAggregate(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aggregate/spatial", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aggregate/bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExportCSV(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export/spatial.csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "storey,entity_type,key,name,EA,SF,LF,CY"))
}

func TestOverrideRoundTrip(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	router := srv.Router(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/classifications/0:1", strings.NewReader(`{"code":"A2020"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/overrides", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.String()
	assert.Contains(t, exported, `"office.ifc:1"`)
	assert.Contains(t, exported, "A2020")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/overrides", strings.NewReader(exported)))
	require.Equal(t, http.StatusOK, rec.Code)
}
