// Package server exposes the classification and aggregation engine over
// HTTP for the browser viewer. The engine itself assumes a single logical
// writer, so the server serializes all access behind one lock and lets the
// viewer decide when to refetch aggregates after a mutation.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
	"github.com/buildplane/takeoff-cli/internal/classify"
	"github.com/buildplane/takeoff-cli/internal/export"
	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

// Server wires the engine to the viewer API.
type Server struct {
	mu      sync.RWMutex
	engine  *classify.Engine
	session *model.Session
	taxo    *taxonomy.Table
}

// New creates a Server over an already-classified engine.
func New(engine *classify.Engine, session *model.Session, taxo *taxonomy.Table) *Server {
	return &Server{engine: engine, session: session, taxo: taxo}
}

// Router builds the HTTP routes. allowedOrigins configures CORS for the
// viewer's dev origin.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/elements/{key}", s.handleElement)
		r.Get("/taxonomy", s.handleTaxonomy)
		r.Get("/classifications", s.handleClassifications)
		r.Get("/classifications/{key}", s.handleGetClassification)
		r.Post("/classifications/{key}", s.handleSetClassification)
		r.Post("/classifications/bulk", s.handleBulkAssign)
		r.Get("/aggregate/{mode}", s.handleAggregate)
		r.Get("/overrides", s.handleExportOverrides)
		r.Post("/overrides", s.handleImportOverrides)
		r.Get("/export/{mode}.csv", s.handleExportCSV)
	})
	return r
}

func (s *Server) input() aggregate.Input {
	return aggregate.Input{
		Elements:        s.session.Elements,
		Classifications: s.engine.Classifications(),
		Elevations:      s.session.Storeys,
		Taxonomy:        s.taxo,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"session": s.session.ID,
		"models":  s.session.Models,
	})
}

func (s *Server) handleElement(w http.ResponseWriter, r *http.Request) {
	ref, err := model.ParseSessionRef(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed element key")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.engine.Element(ref)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown element")
		return
	}
	rec, _ := s.engine.Classification(ref)
	writeJSON(w, http.StatusOK, map[string]any{
		"element":        el,
		"classification": rec,
	})
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, _ *http.Request) {
	leaves := s.taxo.Leaves()
	out := make([]map[string]string, 0, len(leaves))
	for _, code := range leaves {
		out = append(out, map[string]string{"code": code, "label": s.taxo.LeafLabel(code)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClassifications(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.ClassificationRecord)
	for ref, rec := range s.engine.Classifications() {
		out[ref.String()] = rec
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	ref, err := model.ParseSessionRef(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed element key")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.engine.Classification(ref)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown element")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSetClassification(w http.ResponseWriter, r *http.Request) {
	ref, err := model.ParseSessionRef(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed element key")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.engine.SetManual(r.Context(), ref, req.Code)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (s *Server) handleBulkAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityType string `json:"entity_type"`
		Code       string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntityType == "" {
		writeError(w, http.StatusBadRequest, "entity_type and code are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.engine.BulkAssign(r.Context(), req.EntityType, req.Code)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assigned": n})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	mode, err := aggregate.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown aggregation mode")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	res, err := aggregate.Build(mode, s.input())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportOverrides(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.engine.ExportOverrides()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}

func (s *Server) handleImportOverrides(w http.ResponseWriter, r *http.Request) {
	var buf json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&buf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := s.engine.ImportOverrides(r.Context(), buf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	mode, err := aggregate.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown aggregation mode")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="takeoff-`+string(mode)+`.csv"`)
	if err := export.Takeoff(w, mode, s.input()); err != nil {
		zap.L().Warn("server: csv export failed", zap.Error(err))
	}
}
