package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Akash1430/POCPortal/internal/audit"
	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/logging"
	"github.com/Akash1430/POCPortal/internal/infrastructure/metrics"
	"github.com/Akash1430/POCPortal/internal/permission"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client the health
// endpoint reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Security  config.SecurityConfig
	Metrics   config.MetricsConfig
	Logger    *logging.Logger
	Accounts  *auth.Manager
	Tokens    *auth.TokenService
	Evaluator *permission.Evaluator
	AuditRepo audit.Repository // optional: /audit-logs answers 500 without it
	Collector *metrics.Metrics // optional: no instrumentation or /metrics without it
	Health    map[string]HealthChecker
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New and started with Start.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	metCfg    config.MetricsConfig
	logger    *logging.Logger
	accounts  *auth.Manager
	tokens    *auth.TokenService
	evaluator *permission.Evaluator
	auditRepo audit.Repository
	collector *metrics.Metrics
	health    map[string]HealthChecker
	limiter   *ipRateLimiter
	version   string
	router    http.Handler
	server    *http.Server
	cancel    context.CancelFunc // stops the limiter sweep on Close()
}

// New creates a server with the given dependencies. Routes are built
// immediately; the listener is not started until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Accounts == nil || deps.Tokens == nil {
		return nil, errors.New("account manager and token service are required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("permission evaluator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		metCfg:    deps.Metrics,
		logger:    deps.Logger,
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		evaluator: deps.Evaluator,
		auditRepo: deps.AuditRepo,
		collector: deps.Collector,
		health:    deps.Health,
		version:   deps.Version,
	}
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newIPRateLimiter(rl.RequestsPerMinute, rl.Burst)
	}
	s.router = s.buildRouter()

	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.sweepLoop(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
