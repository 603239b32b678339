// Package server exposes the webhook nodes over HTTP: delivery triggers,
// resume URLs of parked executions, health and metrics.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"outputrocks-nodes/internal/common/aws"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/internal/waiting"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the workflow engine side of the webhooks.
type Engine interface {
	PublishResume(ctx context.Context, messageName, token string, ttl time.Duration, variables map[string]interface{}) error
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

type Notifier interface {
	NotifyDelivered(ctx context.Context, delivery aws.Delivery) (string, error)
}

// Trigger binds a delivery path to the credential it is checked against and
// the process it starts.
type Trigger struct {
	Path         string
	CredentialID string
	ProcessID    string
}

type Deps struct {
	TriggerNode host.WebhookNode
	ResumeNode  host.WebhookNode
	Triggers    []Trigger

	Credentials credentials.Store
	Waiting     waiting.Store
	// Engine and Notifier are optional.
	Engine   Engine
	Notifier Notifier

	MessageName  string
	MaxBodyBytes int64
	// Ready reports whether backing services are reachable.
	Ready  func(ctx context.Context) error
	Logger logger.Logger
}

type Server struct {
	deps     Deps
	triggers map[string]Trigger
	logger   logger.Logger
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	triggers := make(map[string]Trigger, len(deps.Triggers))
	for _, t := range deps.Triggers {
		triggers[normalizePath(t.Path)] = t
	}
	return &Server{
		deps:     deps,
		triggers: triggers,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "webhook-server"}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.Health)
	r.Get("/ready", s.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.deps.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(s.deps.MaxBodyBytes))
		}
		r.Post("/webhook/*", s.Deliver)
		r.Post("/webhook-waiting/{token}", s.Resume)
		r.Get("/webhook-waiting/{token}", s.Status)
	})
	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("not ready", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}

func normalizePath(path string) string {
	return strings.Trim(path, "/")
}
