// Package api exposes the HTTP interface for the card service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/config"
	"github.com/linkcard/linkcard/internal/export"
	"github.com/linkcard/linkcard/internal/generator"
	"github.com/linkcard/linkcard/internal/metrics"
	"github.com/linkcard/linkcard/internal/render"
)

// CardGenerator runs one generation cycle and lists the viewport profiles.
type CardGenerator interface {
	Generate(ctx context.Context, req generator.Request) (card.Record, error)
	Viewports() []card.ViewportProfile
}

// CardExporter captures the rendered view as image bytes.
type CardExporter interface {
	Export(ctx context.Context, format export.Format, variant export.Variant) ([]byte, string, error)
}

// Server wires HTTP handlers to the generator, store and exporter.
type Server struct {
	router    chi.Router
	store     *card.Store
	generator CardGenerator
	surface   *render.Surface
	exporter  CardExporter
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. exporter may be
// nil when the capture subsystem is disabled.
func NewServer(
	store *card.Store,
	gen CardGenerator,
	surface *render.Surface,
	exporter CardExporter,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		generator: gen,
		surface:   surface,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(90 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// The browser the exporter drives has no API key, so the view stays open.
	r.Get("/card/view", s.cardView)

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/viewports", s.listViewports)
		r.Route("/cards", func(r chi.Router) {
			r.Post("/", s.createCard)
			r.Route("/current", func(r chi.Router) {
				r.Get("/", s.getCurrentCard)
				r.Get("/status", s.getStatus)
				r.Get("/export", s.exportCard)
				r.Get("/meta-tags", s.metaTags)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// All state is in-memory; readiness equals liveness.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createCardRequest struct {
	URL         string `json:"url"`
	Viewport    string `json:"viewport"`
	ColorScheme string `json:"color_scheme"`
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec, err := s.generator.Generate(r.Context(), generator.Request{
		RawURL:      req.URL,
		ViewportID:  req.Viewport,
		ColorScheme: card.ColorScheme(req.ColorScheme),
	})
	if err != nil {
		if errors.Is(err, generator.ErrInvalidURL) {
			s.writeError(w, http.StatusBadRequest, "could not parse that URL")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"card": rec})
}

func (s *Server) getCurrentCard(w http.ResponseWriter, r *http.Request) {
	state := s.store.Snapshot()
	if state.Record == nil {
		s.writeError(w, http.StatusNotFound, "no card generated yet")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"card": state.Record})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  state.Status,
		"message": state.Message,
	})
}

func (s *Server) listViewports(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"viewports": s.generator.Viewports()})
}

func (s *Server) cardView(w http.ResponseWriter, r *http.Request) {
	opts := render.Options{IncludeFonts: r.URL.Query().Get("fonts") != "off"}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.surface.Render(r.Context(), w, s.store.Snapshot(), opts); err != nil {
		s.logger.Error("card view render failed", zap.Error(err))
	}
}

func (s *Server) exportCard(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "export is disabled")
		return
	}
	if s.store.Snapshot().Record == nil {
		s.writeError(w, http.StatusNotFound, "no card generated yet")
		return
	}

	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatPNG
	}
	if format != export.FormatPNG && format != export.FormatSVG {
		s.writeError(w, http.StatusBadRequest, "format must be png or svg")
		return
	}
	variant := export.Variant(r.URL.Query().Get("variant"))
	if variant == "" {
		variant = export.VariantDownload
	}
	if variant != export.VariantDownload && variant != export.VariantPreview {
		s.writeError(w, http.StatusBadRequest, "variant must be download or preview")
		return
	}

	body, contentType, err := s.exporter.Export(r.Context(), format, variant)
	if err != nil {
		s.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "export failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	if variant == export.VariantDownload {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "card."+string(format)))
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Error("export write failed", zap.Error(err))
	}
}

func (s *Server) metaTags(w http.ResponseWriter, _ *http.Request) {
	state := s.store.Snapshot()
	if state.Record == nil {
		s.writeError(w, http.StatusNotFound, "no card generated yet")
		return
	}
	rec := state.Record

	var b strings.Builder
	tag := func(attr, name, content string) {
		if content == "" {
			return
		}
		fmt.Fprintf(&b, "<meta %s=%q content=%q>\n", attr, name, html.EscapeString(content))
	}
	tag("property", "og:type", "website")
	tag("property", "og:url", rec.URL)
	tag("property", "og:title", rec.Title)
	tag("property", "og:description", rec.Description)
	tag("property", "og:image", rec.Screenshots.Primary)
	tag("name", "twitter:card", "summary_large_image")
	tag("name", "twitter:title", rec.Title)
	tag("name", "twitter:description", rec.Description)
	tag("name", "author", rec.Author)
	if len(rec.Keywords) > 0 {
		tag("name", "keywords", strings.Join(rec.Keywords, ", "))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(b.String())); err != nil {
		s.logger.Error("meta tags write failed", zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
