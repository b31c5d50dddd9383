// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/logging"
)

// Config configures a Server.
type Config struct {
	// Options are the defaults each request's "options" object is applied on.
	Options        analysis.Options
	Logger         *slog.Logger
	AllowedOrigins []string
	// MaxBodyBytes caps request bodies; zero means 32 MiB.
	MaxBodyBytes int64
	// Timeout bounds each request; zero means 60s.
	Timeout time.Duration
}

// Server routes the /v1 pipeline endpoints, health and metrics.
type Server struct {
	opts    analysis.Options
	log     *slog.Logger
	metrics *metrics
	maxBody int64
	router  chi.Router
}

// New builds a Server and its router.
func New(cfg Config) *Server {
	s := &Server{
		opts:    cfg.Options,
		log:     cfg.Logger,
		metrics: newMetrics(),
		maxBody: cfg.MaxBodyBytes,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxBody <= 0 {
		s.maxBody = 32 << 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, render.M{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/profile", s.handleProfile)
		r.Post("/validate", s.handleValidate)
		r.Post("/analyze", s.handleAnalyze)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.router }

// requestLogger tags the request context with its request id, so pipeline
// logs carry it as run_id, and logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(logging.WithRunID(r.Context(), id))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
