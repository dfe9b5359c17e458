package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mattjoyce/sentrymost/internal/action"
	"github.com/mattjoyce/sentrymost/internal/log"
	"github.com/mattjoyce/sentrymost/internal/mattermost"
)

// Server represents the webhook HTTP server.
type Server struct {
	config    Config
	notifier  Notifier
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new webhook server instance.
func New(config Config, notifier Notifier, logger *slog.Logger) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = DefaultNotifyTimeout
	}

	return &Server{
		config:    config,
		notifier:  notifier,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// The notification runs before the response is written.
		WriteTimeout: s.config.NotifyTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.config.Path, s.handleAlert)
	r.Get("/healthz", s.handleHealthz)

	r.NotFound(s.handleFallback)
	r.MethodNotAllowed(s.handleFallback)

	return r
}

// requestID stores a request id in the context under chi's key, reusing the
// sender's id when it supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("Request-ID")
		if id == "" {
			id = r.Header.Get(middleware.RequestIDHeader)
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
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

// handleAlert authenticates a Sentry webhook and relays issue alerts.
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	logger := log.WithRequest(s.logger, middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		logger.Error("failed to read request body", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		logger.Error("request body too large", "limit", s.config.MaxBodySize)
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	ok, err := VerifySignature(r.Header, s.config.SignatureHeader, body, s.config.Secret)
	switch {
	case errors.Is(err, ErrMissingSignature):
		logger.Error("webhook signature missing", "header", s.config.SignatureHeader)
		s.respondError(w, http.StatusBadRequest, "bad request")
		return
	case err != nil:
		logger.Error("webhook signature verification failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	case !ok:
		logger.Error("webhook signature mismatch", "header", s.config.SignatureHeader)
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	doc, err := action.Parse(body)
	if err != nil {
		logger.Error("failed to parse body as json", "error", err)
		s.respondError(w, http.StatusBadRequest, "bad request")
		return
	}
	if data, ok := doc.Data(); ok {
		logger.Debug("alert payload parsed", "data", data)
	}

	act, err := action.Extract(doc)
	if err != nil {
		// Authenticated but unusable: acknowledge so Sentry does not retry.
		logger.Error("failed to get action from body", "error", err)
		s.respondOK(w)
		return
	}

	switch a := act.(type) {
	case action.Unknown:
		name, _ := doc.ActionName()
		logger.Warn("unknown action", "action", name)
	case action.IssueCreated:
		s.notify(r.Context(), logger, a)
	}

	s.respondOK(w)
}

// notify posts the rendered action. The outcome is logged, never returned.
func (s *Server) notify(ctx context.Context, logger *slog.Logger, a action.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotifyTimeout)
	defer cancel()
	ctx = mattermost.WithRequestID(ctx, middleware.GetReqID(ctx))

	start := time.Now()
	err := s.notifier.CreatePost(ctx, s.config.ChannelID, a.String())
	if err != nil {
		attrs := []any{"action", action.Name(a), "channel_id", s.config.ChannelID, "error", err}
		var pe *mattermost.PostError
		if errors.As(err, &pe) {
			attrs = append(attrs, "status", pe.Status)
		}
		logger.Error("failed to create post", attrs...)
		return
	}

	logger.Debug("created post",
		"action", action.Name(a),
		"channel_id", s.config.ChannelID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Version:       s.config.Version,
	})
}

// handleFallback rejects every unrecognized method or path.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	log.WithRequest(s.logger, middleware.GetReqID(r.Context())).Warn("unrecognized request",
		"method", r.Method,
		"path", r.URL.Path,
		"headers", s.redactHeaders(r.Header),
	)
	s.respondError(w, http.StatusBadRequest, "bad request")
}

// redactHeaders copies h with credentials and the configured signature header masked.
func (s *Server) redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", http.CanonicalHeaderKey(s.config.SignatureHeader):
			out[k] = "[redacted]"
		default:
			out[k] = h.Get(k)
		}
	}
	return out
}

func (s *Server) respondOK(w http.ResponseWriter) {
	s.respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
