// Package api provides the HTTP API for computing Shin implied probabilities.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/shin/internal/logger"
	"github.com/yourusername/shin/internal/metrics"
	"github.com/yourusername/shin/internal/models"
	"github.com/yourusername/shin/internal/shin"
)

// DatabasePinger defines the interface for checking database connectivity.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// Calculator computes implied probabilities from decimal prices.
type Calculator interface {
	Calculate(ctx context.Context, prices []float64, opts ...shin.Option) (*shin.Result, error)
}

// ProbabilityStore reads stored solves.
type ProbabilityStore interface {
	LatestProbabilities(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error)
}

// Config holds the configuration for the API server.
type Config struct {
	ServiceName    string
	Version        string
	Commit         string
	Port           int
	Logger         *logrus.Logger
	DB             DatabasePinger
	Calculator     Calculator
	Store          ProbabilityStore
	RateLimit      float64
	Burst          int
	RequestTimeout time.Duration
	MetricsPath    string
}

// Server serves health checks, metrics and the probability endpoints.
type Server struct {
	serviceName    string
	version        string
	commit         string
	port           int
	server         *http.Server
	logger         *logrus.Logger
	access         *logger.AccessLogger
	db             DatabasePinger
	calculator     Calculator
	store          ProbabilityStore
	limiter        *rate.Limiter
	validate       *validator.Validate
	requestTimeout time.Duration
	metricsPath    string
	mu             sync.RWMutex
	ready          bool
}

// NewServer creates a new API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Calculator == nil {
		return nil, errors.New("api server requires a calculator")
	}
	if cfg.Logger == nil {
		return nil, errors.New("api server requires a logger")
	}

	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Server{
		serviceName:    cfg.ServiceName,
		version:        cfg.Version,
		commit:         cfg.Commit,
		port:           port,
		logger:         cfg.Logger,
		access:         logger.NewAccessLogger(cfg.Logger),
		db:             cfg.DB,
		calculator:     cfg.Calculator,
		store:          cfg.Store,
		limiter:        limiter,
		validate:       validator.New(),
		requestTimeout: cfg.RequestTimeout,
		metricsPath:    cfg.MetricsPath,
	}, nil
}

// SetReady marks the server as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server is ready.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", s.instrument("/health", s.handleHealth))
	mux.Handle("/live", s.instrument("/live", s.handleLive))
	mux.Handle("/ready", s.instrument("/ready", s.handleReady))
	mux.Handle("/v1/implied-probabilities", s.instrument("/v1/implied-probabilities",
		allowMethod(http.MethodPost, s.rateLimit(s.limiter, s.handleImpliedProbabilities))))
	mux.Handle("/v1/races/{id}/probabilities", s.instrument("/v1/races/{id}/probabilities",
		allowMethod(http.MethodGet, s.rateLimit(s.limiter, s.handleRaceProbabilities))))
	if s.metricsPath != "" {
		mux.Handle(s.metricsPath, metrics.Handler())
	}
	return mux
}

// Start starts the server in the background and shuts it down when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"port":    s.port,
			"service": s.serviceName,
		}).Info("API server starting")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.logger.WithError(err).Warn("API server shutdown incomplete")
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("API server shutting down")
	s.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}
