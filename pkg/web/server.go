// Package web serves the operation form over HTTP: the HTML page, the
// submit endpoint (form posts and JSON), the CEP lookup proxy used by the
// page on blur, the OpenAPI contract, health and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-opform/internal/metrics"
	"github.com/goliatone/go-opform/pkg/submission"
	"github.com/goliatone/go-opform/pkg/web/view"
)

// Server holds the HTTP front end dependencies.
type Server struct {
	router   chi.Router
	view     *view.Engine
	lookup   submission.AddressLookup
	sink     submission.Sink
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	origins  []string
	dev      bool

	contract     *openapi3.T
	contractJSON []byte
}

// Option configures a Server.
type Option func(*Server)

// WithLookup enables GET /api/zipcodes/{zipcode}. Without it every lookup
// answers 204.
func WithLookup(l submission.AddressLookup) Option {
	return func(s *Server) {
		s.lookup = l
	}
}

// WithSink receives accepted submissions.
func WithSink(sink submission.Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithMetrics records submit outcomes and exposes gatherer on /metrics.
func WithMetrics(rec *metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = rec
		s.gatherer = gatherer
	}
}

// WithLogger sets the request and handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigins enables CORS for the listed origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = append(s.origins, origins...)
	}
}

// WithView replaces the embedded template engine.
func WithView(engine *view.Engine) Option {
	return func(s *Server) {
		if engine != nil {
			s.view = engine
		}
	}
}

// WithDevMode reloads templates on every request.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.dev = dev
	}
}

// New loads the OpenAPI contract and builds the router.
func New(ctx context.Context, options ...Option) (*Server, error) {
	s := &Server{
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}

	if s.view == nil {
		engine, err := view.New(view.WithDevMode(s.dev))
		if err != nil {
			return nil, fmt.Errorf("web: view: %w", err)
		}
		s.view = engine
	}

	doc, err := LoadContract(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := encodeContract(doc)
	if err != nil {
		return nil, err
	}
	s.contract = doc
	s.contractJSON = raw

	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Contract returns the validated OpenAPI document.
func (s *Server) Contract() *openapi3.T {
	return s.contract
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleForm)
	r.Post("/operations", s.handleSubmit)
	r.Get("/api/zipcodes/{zipcode}", s.handleZipcode)
	r.Get("/openapi.json", s.handleContract)
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}
