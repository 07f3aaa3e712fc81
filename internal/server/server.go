package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/bus"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/logging"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/metrics"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
)

// Server is the HTTP control plane for one orchestrator.
type Server struct {
	cfg       *Config
	orch      orchestrator.Switcher
	observer  *bus.Observer
	collector *metrics.Collector
	mux       *http.ServeMux
	startedAt time.Time
	log       zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCollector adds session metrics to GET /api/v1/stats.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithLogger sets the server's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l.With().Str("component", "server").Logger() }
}

// New creates a control plane over orch. eventBus may be nil, in which case the event
// stream answers 503. A nil cfg uses DefaultConfig.
func New(orch orchestrator.Switcher, eventBus *bus.Bus, cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:       cfg,
		orch:      orch,
		mux:       http.NewServeMux(),
		startedAt: time.Now(),
		log:       log.With().Str("component", "server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if eventBus != nil {
		s.observer = bus.NewObserver(eventBus, bus.ObserverConfig{
			ReplayHistory: cfg.ReplayHistory,
			HistoryCount:  cfg.HistoryCount,
		})
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/modes", s.handleListModes)
	s.mux.HandleFunc("GET /api/v1/modes/{slug}", s.handleGetMode)
	s.mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/v1/recommend", s.handleRecommend)
	s.mux.HandleFunc("POST /api/v1/switch", s.handleSwitch)
	s.mux.HandleFunc("POST /api/v1/deactivate", s.handleDeactivate)
	s.mux.HandleFunc("POST /api/v1/execute", s.handleExecute)
	s.mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/v1/export", s.handleExport)
	RegisterMetricsRoutes(s.mux, s)
}

// Handler returns the control plane's root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully: websocket
// clients are disconnected, in-flight requests drain and the active mode is
// deactivated, all within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.observer != nil {
		if err := s.observer.Start(); err != nil {
			ln.Close()
			return err
		}
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("control plane listening")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := logging.DetachContextWithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.shutdown(shutdownCtx, srv))
}

func (s *Server) shutdown(ctx context.Context, srv *http.Server) error {
	var errs []error
	if s.observer != nil {
		if err := s.observer.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := s.orch.DeactivateActive(ctx); err != nil && !errors.Is(err, modes.ErrNoActiveMode) {
		errs = append(errs, fmt.Errorf("deactivate active mode: %w", err))
	}
	s.log.Info().Msg("control plane stopped")
	return errors.Join(errs...)
}

// logRequests logs one line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
