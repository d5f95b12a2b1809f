package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookgate/internal/journal"
)

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Liveness probe.
	r.Get("/", s.handleIndex)

	// All methods; non-POST is answered with 400 by the handler.
	r.HandleFunc("/webhook/{feed}", s.handleFeed)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleIndex answers the liveness probe: 200, empty body.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleFeed routes one inbound delivery. Terminal in one pass: method check,
// registry lookup, then auth-then-invoke. Authentication failures are not
// surfaced to the caller.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feed")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reg, ok := s.registry.Lookup(name)
	if !ok {
		s.logger.Warn("received webhook for unknown feed", "feed", name)
		s.record(r, name, journal.OutcomeUnknownFeed, 0)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	limited := io.LimitReader(r.Body, maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		s.logger.Error("failed to read webhook body", "feed", name, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if len(body) > maxBodySize {
		s.logger.Warn("webhook payload too large", "feed", name)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	payload := string(body)
	if reg.Authenticator(payload) {
		// Dispatch on the request goroutine, not a separate task.
		reg.Handler(payload)
		s.record(r, name, journal.OutcomeAccepted, int64(len(body)))
	} else {
		s.logger.Debug("ignored feed payload (authentication failed)", "feed", name)
		s.record(r, name, journal.OutcomeRejected, int64(len(body)))
	}

	// 200 empty either way; the auth outcome is not leaked to the caller.
	w.WriteHeader(http.StatusOK)
}

// record journals a delivery outcome. Best-effort: failures are logged and
// never change the HTTP response.
func (s *Server) record(r *http.Request, name string, outcome journal.Outcome, bodyBytes int64) {
	if s.recorder == nil {
		return
	}
	_, err := s.recorder.Record(r.Context(), journal.RecordRequest{
		Feed:       name,
		Outcome:    outcome,
		BodyBytes:  bodyBytes,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		s.logger.Error("failed to journal delivery", "feed", name, "error", err)
	}
}
