package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sutakip/sutakip/internal/adapter/snapshot"
	"github.com/sutakip/sutakip/internal/domain"
)

// SnapshotReader returns the raw bytes of the latest snapshot, or
// snapshot.ErrNotFound when there is none.
type SnapshotReader interface {
	Load() ([]byte, error)
}

// Refresher produces a fresh snapshot on demand.
type Refresher interface {
	Refresh(ctx context.Context) ([]domain.Record, error)
}

// Options tunes the server.
type Options struct {
	AllowedOrigins []string
	RefreshTimeout time.Duration
}

// Server exposes the interruption snapshot plus health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer     *http.Server
	snapshots      SnapshotReader
	refresher      Refresher
	refreshTimeout time.Duration
	logger         *slog.Logger
}

type errorResponse struct {
	Hata string `json:"hata"`
}

// refreshGrace is how long an on-demand caller waits past RefreshTimeout.
const refreshGrace = 15 * time.Second

// NewServer creates an HTTP server with /api/kesintiler, /healthz, /readyz,
// and /metrics routes.
func NewServer(addr string, snapshots SnapshotReader, refresher Refresher, ready sharedobs.ReadinessChecker, opts Options, logger *slog.Logger) *Server {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 10 * time.Second,
			// An on-demand refresh may hold the response for up to RefreshTimeout.
			WriteTimeout: opts.RefreshTimeout + refreshGrace + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots:      snapshots,
		refresher:      refresher,
		refreshTimeout: opts.RefreshTimeout,
		logger:         logger,
	}

	router.Get("/api/kesintiler", s.handleInterruptions)
	router.Get("/healthz", sharedobs.LivenessHandler())
	router.Get("/readyz", sharedobs.ReadinessHandler(ready))
	router.Handle("/metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleInterruptions serves the stored snapshot verbatim. Without a usable
// snapshot it runs a refresh and answers with its result; a snapshot that is
// unreadable or not a JSON array is served as an empty list.
func (s *Server) handleInterruptions(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	data, err := s.snapshots.Load()
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		s.refreshOnDemand(w, r, log)
		return
	case err != nil:
		log.Warn("snapshot unreadable, serving empty list", "error", err)
		render.JSON(w, r, []domain.Record{})
		return
	case !snapshot.IsArray(data):
		log.Warn("snapshot is not a JSON array, serving empty list", "bytes", len(data))
		render.JSON(w, r, []domain.Record{})
		return
	}

	writeJSON(w, data)
}

func (s *Server) refreshOnDemand(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	log.Info("no snapshot yet, refreshing on demand")

	// Detached so a disconnecting client does not cancel a refresh other
	// callers may have joined. The refresher bounds its own extraction to
	// RefreshTimeout; the grace covers persisting the result.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.refreshTimeout+refreshGrace)
	defer cancel()

	records, err := s.refresher.Refresh(ctx)
	if err == nil {
		var data []byte
		if data, err = snapshot.Encode(records); err == nil {
			writeJSON(w, data)
			return
		}
	}
	log.Error("on-demand refresh failed", "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Hata: "Veri oluşturulamadı: " + err.Error()})
}

// writeJSON sends data, already encoded, as a 200 JSON response.
func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}
