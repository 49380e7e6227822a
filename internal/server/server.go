// Package server exposes one exploration session over HTTP: JSON endpoints
// for seeding, expanding and assembling, plus a WebSocket change stream.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kmerwalk/internal/assembly"
	"kmerwalk/internal/graph"
	"kmerwalk/internal/metrics"
)

// Config tunes a Server. Zero values select the defaults.
type Config struct {
	EventBuffer int // per-subscriber event queue; 0 = graph.DefaultEventBuffer
	Metrics     *metrics.Metrics
}

// Server owns the session's engine and assembly chain.
type Server struct {
	id       string
	engine   *graph.Engine
	chain    *assembly.Chain
	cfg      Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New builds a server around engine. The session ID is fixed for the life
// of the process; re-seeding bumps the epoch, not the ID.
func New(engine *graph.Engine, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = graph.DefaultEventBuffer
	}
	return &Server{
		id:     uuid.New().String(),
		engine: engine,
		chain:  assembly.New(engine),
		cfg:    cfg,
		logger: logger.Named("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Local tool; any renderer origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ID is the session UUID reported in every session payload.
func (s *Server) ID() string { return s.id }

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.health)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/session", func(r chi.Router) {
		r.Post("/seed", s.seed)
		r.Get("/graph", s.snapshot)
		r.Get("/events", s.events)
		r.Get("/nodes/{nodeID}", s.node)
		r.Post("/nodes/{nodeID}/expand", s.expand)
		r.Get("/assembly", s.getAssembly)
		r.Post("/assembly/select", s.selectNode)
		r.Post("/assembly/reset", s.resetAssembly)
		r.Get("/assembly.fasta", s.assemblyFASTA)
	})
	return r
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
