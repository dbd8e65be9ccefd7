package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/stores"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	healthPath         = "/healthz"
	defaultMetricsPath = "/metrics"

	// DefaultMaxUploadBytes caps decoded driver files when Config leaves it unset.
	DefaultMaxUploadBytes int64 = 64 << 20

	shutdownTimeout = 15 * time.Second
)

// LifecycleService runs lifecycle operations. *engine.Orchestrator implements it.
type LifecycleService interface {
	ExecuteLifecycle(ctx context.Context, req *engine.LifecycleRequest) (*engine.ExecuteResponse, error)
	GetLifecycleExecution(ctx context.Context, requestID string, location engine.DeploymentLocation) (*engine.LifecycleExecution, error)
	FindReference(ctx context.Context, instanceName string, files engine.DriverFiles, location engine.DeploymentLocation) (*engine.FindReferenceResponse, error)
}

// Pinger checks a deployment location. *openstack.Pinger implements it.
type Pinger interface {
	Ping(ctx context.Context, location engine.DeploymentLocation) *engine.PingResponse
}

// RequestLister lists journaled requests. *stores.Journal implements it.
type RequestLister interface {
	Recent(ctx context.Context, filter stores.RequestFilter) ([]*stores.Request, error)
}

// Config holds configuration for the API layer.
type Config struct {
	// RateLimit is the sustained requests per second across the driver
	// API; zero disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size; values below one use one.
	RateBurst int

	// MaxUploadBytes caps the decoded size of driver files.
	MaxUploadBytes int64

	// FilesDir is where driver file workspaces are extracted; empty uses the
	// system temporary directory.
	FilesDir string

	// MetricsPath is where the metrics handler is mounted.
	MetricsPath string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the driver HTTP API.
type Server struct {
	cfg       Config
	lifecycle LifecycleService
	pinger    Pinger
	journal   RequestLister
	metrics   http.Handler
	health    func(ctx context.Context) error
	logger    zerolog.Logger
	decoder   *decoder
	limiter   *rate.Limiter
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithPinger mounts the admin ping endpoint.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithJournal mounts the request listing endpoint.
func WithJournal(j RequestLister) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetricsHandler mounts h at Config.MetricsPath.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck makes /healthz report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

// NewServer creates an API server backed by lifecycle.
func NewServer(cfg Config, lifecycle LifecycleService, logger zerolog.Logger, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = defaultMetricsPath
	}

	s := &Server{
		cfg:       cfg,
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "api").Logger(),
		// base64 inflates by a third; leave room for the rest of the body
		decoder: newDecoder(cfg.MaxUploadBytes*4/3 + 1<<20),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, rateLimit(s.limiter, h))
	}

	api("POST /api/driver/lifecycle/execute", s.handleExecute)
	api("POST /api/driver/lifecycle/executions/{requestId}", s.handleExecution)
	api("POST /api/driver/references/find", s.handleFindReference)
	if s.journal != nil {
		api("GET /api/driver/requests", s.handleListRequests)
	}
	if s.pinger != nil {
		api("POST /api/openstack/admin/ping", s.handlePing)
	}

	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics)
	}

	var h http.Handler = mux
	h = otelhttp.NewHandler(h, "heatdriver-api")
	h = logRequests(s.logger, h)
	return recoverPanics(s.logger, h)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("API server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
