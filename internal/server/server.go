// Package server exposes the derived telemetry views over HTTP. Handlers
// are stateless: each request opens its own read-only store handle and
// closes it on every exit path, so concurrent requests never share state
// beyond the store file itself.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/automatonhq/sidecar/internal/catalog"
	"github.com/automatonhq/sidecar/internal/config"
	"github.com/automatonhq/sidecar/internal/otel"
	"github.com/automatonhq/sidecar/internal/store"
	"github.com/automatonhq/sidecar/internal/views"
)

// Config carries the server's collaborators, built once at startup.
type Config struct {
	Reader     *store.Reader
	Reconciler *views.Reconciler
	Catalog    *catalog.Catalog
	CORS       config.CORSConfig
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Metrics    *otel.Metrics
	// Fingerprint identifies the loaded config on the health endpoint.
	Fingerprint string
}

type Server struct {
	cfg Config
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = nooptrace.NewTracerProvider().Tracer(otel.TracerName)
	}
	return &Server{cfg: cfg}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/turns", s.handleTurns)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/api/children", s.handleChildren)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/catalog/", s.handleCatalogItem)
	mux.HandleFunc("/api/marketplace/stats", s.handleMarketplaceStats)

	var h http.Handler = mux
	h = NewCORSMiddleware(s.cfg.CORS)(h)
	h = s.requestMiddleware(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	db, err := s.cfg.Reader.Open(r.Context())
	if err != nil {
		s.countOpenError(r)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	defer db.Close()

	if err := db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	payload := map[string]any{"ok": true}
	if s.cfg.Fingerprint != "" {
		payload["config"] = s.cfg.Fingerprint
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.withStore(w, r, func(db *store.DB) (any, error) {
		return s.cfg.Reconciler.Status(r.Context(), db)
	})
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	s.withStore(w, r, func(db *store.DB) (any, error) {
		return s.cfg.Reconciler.Turns(r.Context(), db, limit)
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	s.withStore(w, r, func(db *store.DB) (any, error) {
		return s.cfg.Reconciler.Transactions(r.Context(), db, limit)
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.withStore(w, r, func(db *store.DB) (any, error) {
		return s.cfg.Reconciler.Heartbeat(r.Context(), db)
	})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.withStore(w, r, func(db *store.DB) (any, error) {
		return s.cfg.Reconciler.Children(r.Context(), db)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	db, err := s.cfg.Reader.Open(r.Context())
	if err != nil {
		s.countOpenError(r)
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer db.Close()

	report, err := s.cfg.Reconciler.Summary(r.Context(), db)
	if err != nil {
		s.cfg.Logger.Error("summary view failed", "error", err, "request_id", requestIDFrom(r))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(report))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	doc, ok := s.cfg.Catalog.Active()
	if !ok {
		writeJSON(w, http.StatusOK, catalog.Document{Skills: []catalog.Skill{}})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleCatalogItem serves /api/catalog/{name}, /{name}/install and
// /{name}/readme.
func (s *Server) handleCatalogItem(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/catalog/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.serveSkillDetail(w, parts[0])
	case len(parts) == 2 && parts[1] == "install":
		s.serveMarkdown(w, parts[0], "SKILL.md")
	case len(parts) == 2 && parts[1] == "readme":
		s.serveMarkdown(w, parts[0], "README.md")
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) serveSkillDetail(w http.ResponseWriter, name string) {
	if _, ok := s.cfg.Catalog.Document(); !ok {
		writeJSONError(w, http.StatusNotFound, "catalog not found")
		return
	}
	skill, ok := s.cfg.Catalog.Find(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "skill not found")
		return
	}
	readme, _ := s.cfg.Catalog.Readme(name)
	writeJSON(w, http.StatusOK, skillDetail{Skill: skill, Readme: readme})
}

type skillDetail struct {
	catalog.Skill
	Readme string `json:"readme"`
}

func (s *Server) serveMarkdown(w http.ResponseWriter, name, file string) {
	var content string
	var ok bool
	if file == "SKILL.md" {
		content, ok = s.cfg.Catalog.InstallDoc(name)
	} else {
		content, ok = s.cfg.Catalog.Readme(name)
	}
	if !ok {
		msg := "skill not found"
		if file == "README.md" {
			msg = "readme not found"
		}
		writeJSONError(w, http.StatusNotFound, msg)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func (s *Server) handleMarketplaceStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Catalog.Stats())
}

// withStore runs one view with a request-scoped store handle and writes the
// result as JSON.
func (s *Server) withStore(w http.ResponseWriter, r *http.Request, view func(db *store.DB) (any, error)) {
	if !requireGet(w, r) {
		return
	}
	db, err := s.cfg.Reader.Open(r.Context())
	if err != nil {
		s.countOpenError(r)
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer db.Close()

	out, err := view(db)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.cfg.Logger.Error("view failed", "path", r.URL.Path, "error", err, "request_id", requestIDFrom(r))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) countOpenError(r *http.Request) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StoreOpenErrors.Add(r.Context(), 1)
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 20
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
