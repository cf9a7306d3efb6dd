// Package server exposes the renderer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/metrics"
	"github.com/pders01/texmath/internal/models"
	"github.com/pders01/texmath/internal/render"
)

// Handler serves render requests into one cache directory
type Handler struct {
	Renderer *render.Renderer
	Files    *cache.DirStore
	MaxBody  int64
	Display  bool
	// Timeout bounds each request; zero leaves requests unbounded
	Timeout time.Duration
}

type renderRequest struct {
	Expression string `json:"expression"`
	DPI        int    `json:"dpi,omitempty"`
	Display    *bool  `json:"display,omitempty"`
}

type renderResponse struct {
	Identity      string `json:"identity"`
	File          string `json:"file"`
	URL           string `json:"url"`
	Baseline      int    `json:"baseline"`
	BaselineKnown bool   `json:"baseline_known"`
	Cached        bool   `json:"cached"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewRouter wires the routes and middleware
func NewRouter(h *Handler, baseLogger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware(routePattern))
	r.Use(loggingContext(baseLogger))
	r.Use(recoverer)
	if h.Timeout > 0 {
		r.Use(chimw.Timeout(h.Timeout))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/render", h.RenderJSON)
		r.Get("/render", h.RenderQuery)
		r.Get("/images/{name}", h.Image)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}

// RenderJSON handles POST /v1/render
func (h *Handler) RenderJSON(w http.ResponseWriter, r *http.Request) {
	if h.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}

	display := h.Display
	if req.Display != nil {
		display = *req.Display
	}
	h.render(w, r, req.Expression, req.DPI, display)
}

// RenderQuery handles GET /v1/render?tex=...&dpi=...&display=...
func (h *Handler) RenderQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dpi := 0
	if v := q.Get("dpi"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dpi", nil)
			return
		}
		dpi = n
	}

	display := h.Display
	if v := q.Get("display"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid display flag", nil)
			return
		}
		display = b
	}

	h.render(w, r, q.Get("tex"), dpi, display)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, expression string, dpi int, display bool) {
	ctx := r.Context()
	logger := logging.L(ctx)

	res, err := h.Renderer.Render(ctx, render.Request{
		Expression: expression,
		Output:     h.Files.Dir(),
		DPI:        dpi,
		Display:    display,
	})
	if err != nil {
		status, diag := statusFor(err)
		logger.Info("render_rejected", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error(), diag)
		return
	}

	name := path.Base(strings.ReplaceAll(res.Path, "\\", "/"))
	writeJSON(w, http.StatusOK, renderResponse{
		Identity:      res.Identity,
		File:          name,
		URL:           "/v1/images/" + name,
		Baseline:      res.Baseline,
		BaselineKnown: res.BaselineKnown,
		Cached:        res.Cached,
	})
}

// Image handles GET /v1/images/{name}
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, err := h.Files.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found", nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stat failed", nil)
		return
	}

	// artifacts are immutable
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func statusFor(err error) (int, []string) {
	var typesetErr *render.TypesetError
	switch {
	case errors.Is(err, models.ErrInvalidSource):
		return http.StatusBadRequest, nil
	case errors.As(err, &typesetErr):
		return http.StatusUnprocessableEntity, typesetErr.Diagnostics
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, nil
	default:
		return http.StatusInternalServerError, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, diag []string) {
	writeJSON(w, status, errorResponse{Error: msg, Diagnostics: diag})
}

// Server runs the HTTP listener
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New creates a server listening on addr
func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}
