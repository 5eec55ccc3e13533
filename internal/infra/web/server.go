package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain/ports/adapter"
	"creator-ai-platform/internal/infra/logging"
	"creator-ai-platform/internal/infra/redis"
	"creator-ai-platform/internal/usecase"
)

// Limits for the billing webhook rate limiter.
const (
	webhookRateLimit  = 30
	webhookRateWindow = time.Minute
)

type Server struct {
	webhookUC   usecase.WebhookUseCase
	admissionUC usecase.AdmissionUseCase
	requestUC   usecase.RequestUseCase
	jobUC       usecase.JobUseCase
	worker      adapter.GPUWorkerAdapter
	limiter     *redis.RateLimiter // nil disables rate limiting (dev mode)

	workerSecret string
	cronSecret   string
	adminAPIKey  string
	log          zerolog.Logger
}

func NewServer(
	webhookUC usecase.WebhookUseCase,
	admissionUC usecase.AdmissionUseCase,
	requestUC usecase.RequestUseCase,
	jobUC usecase.JobUseCase,
	worker adapter.GPUWorkerAdapter,
	limiter *redis.RateLimiter,
	workerSecret, cronSecret, adminAPIKey string,
	log zerolog.Logger,
) *Server {
	return &Server{
		webhookUC:    webhookUC,
		admissionUC:  admissionUC,
		requestUC:    requestUC,
		jobUC:        jobUC,
		worker:       worker,
		limiter:      limiter,
		workerSecret: workerSecret,
		cronSecret:   cronSecret,
		adminAPIKey:  adminAPIKey,
		log:          log.With().Str("component", "web").Logger(),
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traceContext)

	r.Get("/health", s.healthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/worker", s.workerWebhookHandler())
	r.Post("/webhooks/billing", s.billingWebhookHandler())

	r.With(s.bearerAuth(func() string { return s.cronSecret })).
		Get("/cron/enqueue-lead-samples", s.enqueueSamplesHandler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.bearerAuth(func() string { return s.adminAPIKey }))
		r.Post("/automation/run-enqueue-samples", s.enqueueSamplesHandler())
		r.Post("/generation-requests", submitRequestHandler(s.requestUC))
		r.Post("/generation-requests/{id}/approve", reviewRequestHandler(s.requestUC, true))
		r.Post("/generation-requests/{id}/reject", reviewRequestHandler(s.requestUC, false))
		r.Post("/generation-requests/{id}/generate", generateHandler(s.requestUC))
		r.Post("/generation-requests/{id}/reset-retries", resetRetriesHandler(s.requestUC))
		r.Post("/subjects/{subjectID}/train", trainHandler(s.jobUC))
		r.Get("/jobs/{id}", jobStatusHandler(s.jobUC))
	})

	return r
}

func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// traceContext carries chi's request id into the log context so every line
// emitted while handling a request can be tied back to it.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = logging.WithTraceID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerAuth guards a route with a static bearer token. The secret accessor is
// evaluated per request so tests can swap keys.
func (s *Server) bearerAuth(secret func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := secret()
			if key == "" {
				s.log.Error().Str("path", r.URL.Path).Msg("auth key not configured")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}
			if parts[1] != key {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		workerOK := false
		if s.worker != nil {
			if st, err := s.worker.Health(ctx); err == nil {
				workerOK = st.OK
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "worker": workerOK})
	}
}
