// Package health exposes the watch-mode status of the screener over HTTP:
// liveness, readiness against its dependencies, and the metrics registry.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kabu-screener/internal/marketdata"
)

const (
	defaultAddr = ":9090"
	pingTimeout = 3 * time.Second

	statusOK       = "ok"
	statusNotReady = "not_ready"
)

// Pinger reports whether the database answers; *database.DB satisfies it
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the server to what readiness depends on. Nil dependencies are not checked.
type Config struct {
	Service string
	Version string
	Commit  string
	// Addr is the listen address, ":9090" when empty
	Addr   string
	Logger *logrus.Logger

	DB      Pinger
	Breaker marketdata.BreakerReporter

	Metrics     http.Handler
	MetricsPath string
}

// Status is the body of every endpoint
type Status struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version,omitempty"`
	Commit  string            `json:"commit,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Server answers /live, /ready and optionally the metrics path
type Server struct {
	cfg  Config
	http *http.Server

	mu      sync.RWMutex
	ready   bool
	lastRun time.Time
	lastErr error
}

// NewServer creates a server that reports not ready until SetReady(true)
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Server{cfg: cfg}
}

// SetReady flips the service check, e.g. once the scheduler is running
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// RecordRun keeps the outcome of the latest screening run.
// A failed run is reported on /ready but does not fail it.
func (s *Server) RecordRun(at time.Time, err error) {
	s.mu.Lock()
	s.lastRun, s.lastErr = at, err
	s.mu.Unlock()
}

// Handler returns the endpoint mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.live)
	mux.HandleFunc("/health", s.live)
	mux.HandleFunc("/ready", s.readiness)
	if s.cfg.Metrics != nil {
		mux.Handle(s.cfg.MetricsPath, s.cfg.Metrics)
	}
	return mux
}

// Start binds the listener and serves in the background until Shutdown.
// Bind errors are returned rather than logged from the serving goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.cfg.Logger.WithFields(logrus.Fields{
		"addr":    ln.Addr().String(),
		"service": s.cfg.Service,
	}).Info("Health server listening")

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.WithError(err).Error("Health server stopped")
		}
	}()
	return nil
}

// Shutdown drains in-flight requests; it is a no-op before Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, Status{
		Status:  statusOK,
		Service: s.cfg.Service,
		Version: s.cfg.Version,
		Commit:  s.cfg.Commit,
	})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.check(r.Context())
	body := Status{Status: statusOK, Service: s.cfg.Service, Checks: checks}
	code := http.StatusOK
	if !healthy {
		body.Status = statusNotReady
		code = http.StatusServiceUnavailable
	}
	s.write(w, code, body)
}

// check evaluates every configured dependency
func (s *Server) check(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	ready, lastRun, lastErr := s.ready, s.lastRun, s.lastErr
	s.mu.RUnlock()

	checks := map[string]string{"service": statusOK}
	healthy := true
	if !ready {
		checks["service"] = statusNotReady
		healthy = false
	}

	switch {
	case lastRun.IsZero():
		checks["last_run"] = "pending"
	case lastErr != nil:
		checks["last_run"] = fmt.Sprintf("error at %s: %v", lastRun.Format(time.RFC3339), lastErr)
	default:
		checks["last_run"] = "ok at " + lastRun.Format(time.RFC3339)
	}

	if s.cfg.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.cfg.DB.Ping(pingCtx); err != nil {
			checks["database"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["database"] = statusOK
		}
	}

	// half_open lets a trial through, so only a fully open breaker fails readiness
	if s.cfg.Breaker != nil {
		state := s.cfg.Breaker.BreakerState()
		checks["market_data"] = "breaker " + state
		if state == marketdata.BreakerOpen {
			healthy = false
		}
	}
	return checks, healthy
}

func (s *Server) write(w http.ResponseWriter, code int, body Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.cfg.Logger.WithError(err).Debug("Failed to write health response")
	}
}
