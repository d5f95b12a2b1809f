package webhook

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/hookgate/internal/feed"
	"github.com/mattjoyce/hookgate/internal/tunnel"
)

// startupTimeout bounds the handshake between Start and the goroutine that
// binds the listener and opens the tunnel. Variable so tests can shrink it.
var startupTimeout = 3 * time.Second

// Server owns the HTTP listener and the tunnel, and coordinates their
// lifecycle. Construct with New, register feeds on the registry before Start,
// then Start once. Failed is terminal for an instance; build a fresh Server
// to try again.
type Server struct {
	config   Config
	registry *feed.Registry
	tunnel   tunnel.Provider
	recorder DeliveryRecorder
	logger   *slog.Logger

	mu         sync.Mutex
	started    bool
	stopped    bool
	httpServer *http.Server

	status        atomic.Int32
	publicBaseURL atomic.Value // string
}

// New creates a webhook server. recorder may be nil to disable journaling.
func New(config Config, registry *feed.Registry, provider tunnel.Provider, recorder DeliveryRecorder, logger *slog.Logger) *Server {
	return &Server{
		config:   config,
		registry: registry,
		tunnel:   provider,
		recorder: recorder,
		logger:   logger,
	}
}

// Start brings up the listener and the tunnel, and returns once both are up
// or the startup failed. The listener is bound and served from a background
// goroutine; Start blocks at most startupTimeout waiting for its readiness
// signal. A repeat call while running is a no-op returning nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		if s.Status() == StatusConnected {
			return nil
		}
		return fmt.Errorf("webhook server already started (status %s)", s.Status())
	}
	s.started = true
	s.mu.Unlock()

	ready := make(chan error, 1)
	go s.serve(ready)

	select {
	case err := <-ready:
		if err != nil {
			return err
		}
		s.logger.Info("webhook server connected",
			"addr", s.config.Addr(),
			"public_url", s.PublicBaseURL(),
			"feeds", s.registry.Len(),
		)
		return nil
	case <-time.After(startupTimeout):
		s.logger.Error("webhook server took too long to start, now stopping it")
		s.Stop()
		s.status.Store(int32(StatusFailed))
		return ErrStartupTimeout
	}
}

// serve binds the listener, opens the tunnel and runs the serve loop until
// Stop. It signals ready exactly once, after the status transition.
func (s *Server) serve(ready chan<- error) {
	addr := s.config.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("failed to bind webhook listener", "addr", addr, "error", err)
		s.status.CompareAndSwap(int32(StatusPending), int32(StatusFailed))
		ready <- fmt.Errorf("bind %s: %w", addr, err)
		return
	}

	publicURL, err := s.tunnel.Connect(s.config.Port, "http")
	if err != nil {
		var authErr *tunnel.AuthError
		if errors.As(err, &authErr) {
			s.logger.Error("tunnel provider rejected the auth token, check the configured credential", "error", err)
		} else {
			s.logger.Error("failed to open tunnel", "port", s.config.Port, "error", err)
		}
		_ = ln.Close()
		s.status.CompareAndSwap(int32(StatusPending), int32(StatusFailed))
		ready <- err
		return
	}

	srv := &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	if s.stopped {
		// Stop won the race (startup timeout). Roll the tunnel and
		// listener back and leave the status alone.
		s.mu.Unlock()
		_ = ln.Close()
		if err := s.tunnel.TeardownAll(); err != nil {
			s.logger.Warn("tunnel teardown failed", "error", err)
		}
		ready <- ErrStartupTimeout
		return
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.publicBaseURL.Store(publicURL + "/webhook")
	s.status.CompareAndSwap(int32(StatusPending), int32(StatusConnected))
	ready <- nil

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("webhook server stopped unexpectedly", "error", err)
	}
}

// Stop tears down the tunnel session wholesale, then closes the HTTP server
// if one is running, which unblocks the serve goroutine. Idempotent; safe to
// call when never started.
func (s *Server) Stop() {
	if err := s.tunnel.TeardownAll(); err != nil {
		s.logger.Warn("tunnel teardown failed", "error", err)
	}

	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Close(); err != nil {
			s.logger.Warn("failed to close webhook listener", "error", err)
		}
		s.logger.Info("webhook server stopped")
	}
}

// Status returns the handshake signal's current value.
func (s *Server) Status() Status {
	return Status(s.status.Load())
}

// PublicBaseURL returns the externally reachable base URL for feed
// subscriptions (tunnel URL + "/webhook"). Empty until connected.
func (s *Server) PublicBaseURL() string {
	if v, ok := s.publicBaseURL.Load().(string); ok {
		return v
	}
	return ""
}

// SubscriptionURL returns the public delivery URL for a feed. Valid only once
// the server is connected.
func (s *Server) SubscriptionURL(name string) string {
	return s.registry.SubscriptionURL(s.PublicBaseURL(), name)
}

// Healthy reports whether the bind address has been resolved. Deliberately
// shallow: it verifies configuration, not tunnel reachability.
func (s *Server) Healthy() bool {
	return s.config.Host != "" && s.config.Port != 0
}

// StartupMessage returns the human-readable startup report and health flag.
func (s *Server) StartupMessage() (string, bool) {
	msg := fmt.Sprintf("Webhook configured on address: %s and port: %d", s.config.Host, s.config.Port)
	return msg, s.Healthy()
}
