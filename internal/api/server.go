package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mattjoyce/missionctl/internal/agentcli"
	"github.com/mattjoyce/missionctl/internal/auth"
	"github.com/mattjoyce/missionctl/internal/dispatch"
	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
	"github.com/mattjoyce/missionctl/internal/supervisor"
)

// TaskDispatcher defines the dispatch operations exposed over HTTP.
type TaskDispatcher interface {
	DispatchTask(ctx context.Context, task model.Task) ([]dispatch.Record, error)
	RetryDispatch(ctx context.Context, taskID, agentID string) ([]dispatch.Record, error)
	SendAgentMessage(ctx context.Context, agentID, message string) dispatch.MessageResult
	Log(limit int) []dispatch.Record
	ForTask(taskID string) []dispatch.Record
}

// GatewayClient defines the gateway operations exposed over HTTP.
type GatewayClient interface {
	Health(ctx context.Context) (json.RawMessage, error)
	WakeAgent(ctx context.Context, agentID string) (json.RawMessage, error)
}

// CronRunner defines the agent CLI cron queries exposed over HTTP.
type CronRunner interface {
	CronJobs(ctx context.Context) agentcli.CronJobsResult
	CronRuns(ctx context.Context, agentID string, limit int) agentcli.CronRunsResult
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the legacy single bearer token (admin/full access).
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// AllowedOrigins for browser dashboards. Empty disables CORS.
	AllowedOrigins []string
	// AutoDispatch makes POST /api/tasks match an agent and dispatch the
	// new task immediately.
	AutoDispatch bool
}

// Server represents the HTTP API server.
type Server struct {
	config     Config
	store      store.Store
	dispatcher TaskDispatcher
	sup        *supervisor.Service
	gateway    GatewayClient
	cron       CronRunner
	hub        *events.Hub
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. gateway and cron may be nil when the
// corresponding backends are not configured.
func New(config Config, st store.Store, d TaskDispatcher, sup *supervisor.Service, gw GatewayClient, cron CronRunner, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		store:      st,
		dispatcher: d,
		sup:        sup,
		gateway:    gw,
		cron:       cron,
		hub:        hub,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		}).Handler)
	}

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes("tasks:ro", "tasks:rw")).Get("/tasks", s.handleListTasks)
		r.With(s.requireScopes("tasks:rw")).Post("/tasks", s.handleCreateTask)
		r.With(s.requireScopes("tasks:ro", "tasks:rw")).Get("/tasks/{taskID}", s.handleGetTask)
		r.With(s.requireScopes("tasks:rw")).Patch("/tasks/{taskID}", s.handlePatchTask)
		r.With(s.requireScopes("tasks:ro", "tasks:rw")).Get("/tasks/{taskID}/result", s.handleGetResult)
		r.With(s.requireScopes("tasks:rw")).Post("/tasks/{taskID}/result", s.handleStoreResult)
		r.With(s.requireScopes("tasks:rw")).Post("/tasks/{taskID}/delegate", s.handleDelegate)

		r.With(s.requireScopes("dispatch:rw")).Post("/dispatch/{taskID}", s.handleDispatch)
		r.With(s.requireScopes("dispatch:rw")).Post("/dispatch/{taskID}/retry", s.handleRetryDispatch)
		r.With(s.requireScopes("dispatch:ro", "dispatch:rw")).Get("/dispatch/logs", s.handleDispatchLogs)
		r.With(s.requireScopes("dispatch:ro", "dispatch:rw")).Get("/dispatch/logs/{taskID}", s.handleDispatchLogsForTask)

		r.With(s.requireScopes("agents:ro", "agents:rw")).Get("/agents", s.handleListAgents)
		r.With(s.requireScopes("agents:rw")).Post("/agents/{agentID}/message", s.handleAgentMessage)
		r.With(s.requireScopes("agents:rw")).Post("/agents/{agentID}/wake", s.handleAgentWake)

		r.With(s.requireScopes("gateway:ro")).Get("/gateway/health", s.handleGatewayHealth)

		r.With(s.requireScopes("delegations:ro", "tasks:ro", "tasks:rw")).Get("/delegations", s.handleDelegations)
		r.With(s.requireScopes("tasks:ro", "tasks:rw")).Post("/match", s.handleMatch)
		r.With(s.requireScopes("tasks:ro", "tasks:rw")).Get("/activity", s.handleActivity)

		r.With(s.requireScopes("events:ro", "events:rw")).Get("/events", s.handleEvents)

		r.With(s.requireScopes("agents:ro", "agents:rw")).Get("/cron/jobs", s.handleCronJobs)
		r.With(s.requireScopes("agents:ro", "agents:rw")).Get("/cron/runs", s.handleCronRuns)
	})

	return r
}

// authMiddleware validates the bearer token and stashes the principal.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		principal, ok := auth.Authenticate(token, s.config.APIKey, s.config.Tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// requireScopes returns middleware that rejects principals lacking all of the
// given scopes. The admin wildcard always passes.
func (s *Server) requireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || !auth.HasAnyScope(principal, scopes...) {
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
