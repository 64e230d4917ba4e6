// Package handler provides the HTTP API for the survey service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stevemurr/flash-survey/catalog"
	"github.com/stevemurr/flash-survey/dashboard"
	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/logging"
	"github.com/stevemurr/flash-survey/store"
	"github.com/stevemurr/flash-survey/submission"
)

// Config carries the optional collaborators of a Handler.
type Config struct {
	Exporter       *export.Exporter
	Dates          export.DateFormatter
	ProgressTarget int
	AllowedOrigins []string
	Logger         *logging.Logger

	// OnLogout runs when an admin logs out. Nil means logout only acknowledges.
	OnLogout func(ctx context.Context) error
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store  store.Store
	cfg    Config
	router chi.Router
}

// New creates a Handler and wires up all routes.
func New(s store.Store, cfg Config) *Handler {
	if cfg.Exporter == nil {
		cfg.Exporter = export.New(catalog.Default())
	}
	if cfg.Dates.Location == nil {
		cfg.Dates = export.NewDateFormatter("", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	h := &Handler{store: s, cfg: cfg, router: chi.NewRouter()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.cfg.Logger))
	r.Use(cors(h.cfg.AllowedOrigins))

	r.Get("/", h.root)
	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/submissions", h.listSubmissions)
		r.Post("/submissions", h.createSubmission)
		r.Delete("/submissions", h.clearSubmissions)

		r.Get("/dashboard", h.dashboard)
		r.Get("/export", h.export)
		r.Post("/logout", h.logout)
	})
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// mapErr writes the response for a store or export failure.
func mapErr(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, store.ErrCorrupt):
		logging.FromContext(ctx).Error(ctx, "stored submissions are corrupt", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"detail":   err.Error(),
			"recovery": "clear",
		})
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.FromContext(ctx).Error(ctx, "request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Flash Survey",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- submissions ----------

type createRequest struct {
	Data submission.Answers `json:"data"`
}

func (h *Handler) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Data == nil {
		req.Data = submission.Answers{}
	}

	saved, err := h.store.Save(r.Context(), req.Data)
	if err != nil {
		mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.GetAll(r.Context())
	if err != nil {
		mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Filter(subs, r.URL.Query().Get("q")))
}

func (h *Handler) clearSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "clearing all submissions requires confirm=true")
		return
	}
	if err := h.store.Clear(r.Context()); err != nil {
		mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ---------- dashboard ----------

type dashboardResponse struct {
	Stats dashboard.Stats `json:"stats"`
	Rows  []dashboard.Row `json:"rows"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.GetAll(r.Context())
	if err != nil {
		mapErr(w, r, err)
		return
	}
	filtered := dashboard.Filter(subs, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, dashboardResponse{
		Stats: dashboard.Summarize(subs, h.cfg.ProgressTarget),
		Rows:  dashboard.Rows(filtered, h.cfg.Dates),
	})
}

// ---------- export ----------

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.GetAll(r.Context())
	if err != nil {
		mapErr(w, r, err)
		return
	}
	a, err := h.cfg.Exporter.Export(r.Context(), subs, export.HTTPSink{W: w})
	if err != nil {
		// Headers are already sent; only log.
		logging.FromContext(r.Context()).Error(r.Context(), "export failed", zap.Error(err))
		return
	}
	logging.FromContext(r.Context()).Info(r.Context(), "export delivered",
		zap.String("filename", a.Filename),
		zap.Int("rows", len(subs)),
	)
}

// ---------- session ----------

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if h.cfg.OnLogout != nil {
		if err := h.cfg.OnLogout(r.Context()); err != nil {
			mapErr(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
