package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/JakeFAU/venue-harvester/internal/harvest"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
)

const requestTimeout = 30 * time.Second

// SummarySource reports the state of the current run.
type SummarySource interface {
	Snapshot() harvest.Summary
}

// Server wires HTTP handlers to a running harvest.
type Server struct {
	router  chi.Router
	source  SummarySource
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. cat may be nil.
func NewServer(source SummarySource, cat *catalog.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source:  source,
		catalog: cat,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/summary", s.summary)
		r.Get("/targets", s.listTargets)
		r.Get("/venues", s.listVenues)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the run has started.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil || s.source.Snapshot().Started.IsZero() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no run attached")
		return
	}
	snap := s.source.Snapshot()
	snap.Results = nil
	writeJSON(w, http.StatusOK, map[string]any{"summary": snap})
}

func (s *Server) listVenues(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": toVenueDTOs(s.catalog.Venues())})
}

type venueDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Family          string `json:"family"`
	VolumeStartYear int    `json:"volume_start_year,omitempty"`
	Parity          string `json:"parity,omitempty"`
	ActiveFrom      int    `json:"active_from,omitempty"`
	DropFirst       bool   `json:"drop_first,omitempty"`
	TitleOnly       bool   `json:"title_only,omitempty"`
	Markup          string `json:"markup"`
}

func toVenueDTOs(in []catalog.Venue) []venueDTO {
	out := make([]venueDTO, 0, len(in))
	for _, v := range in {
		out = append(out, venueDTO{
			ID:              v.ID,
			Name:            v.DisplayName,
			Family:          string(v.Family),
			VolumeStartYear: v.VolumeStartYear,
			Parity:          string(v.Parity),
			ActiveFrom:      v.ActiveFrom,
			DropFirst:       v.DropFirst,
			TitleOnly:       v.TitleOnly,
			Markup:          string(v.Markup),
		})
	}
	return out
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", w.Header().Get("X-Request-ID")),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
