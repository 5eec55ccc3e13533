// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"creator-ai-platform/internal/config"
	"creator-ai-platform/internal/domain/ports/adapter"
	workerAdapters "creator-ai-platform/internal/infra/adapters/worker"
	pg "creator-ai-platform/internal/infra/db/postgres"
	"creator-ai-platform/internal/infra/logging"
	red "creator-ai-platform/internal/infra/redis"
	"creator-ai-platform/internal/infra/sched"
	"creator-ai-platform/internal/infra/web"
	"creator-ai-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop worker, no rate limiting)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	var rateLimiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
	} else if !cfg.Runtime.Dev {
		logger.Warn().Msg("redis.url not set, webhook rate limiting disabled")
	}

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	leadRepo := pg.NewLeadRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)
	requestRepo := pg.NewRequestRepo(pool)
	subjectRepo := pg.NewSubjectModelRepo(pool)
	claimRepo := pg.NewIdempotencyRepo(pool)
	settingsRepo := pg.NewSettingsRepo(pool)
	eventLogRepo := pg.NewEventRepo(pool)
	webhookEventRepo := pg.NewWebhookEventRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- GPU worker adapter ----
	var gpu adapter.GPUWorkerAdapter
	if cfg.Runtime.Dev && cfg.Worker.EndpointID == "" {
		gpu = workerAdapters.NewNoopWorkerAdapter()
		logger.Warn().Msg("worker adapter: noop (dev)")
	} else {
		gpu, err = workerAdapters.NewRunPodAdapter(cfg.Worker.BaseURL, cfg.Worker.EndpointID, cfg.Worker.APIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker adapter")
		}
		logger.Info().Str("base_url", cfg.Worker.BaseURL).Str("endpoint_id", cfg.Worker.EndpointID).
			Msg("worker adapter: runpod")
	}

	// ---- Use cases ----
	workerSettings := usecase.WorkerSettings{
		WebhookURL:        cfg.Worker.AppURL + "/webhooks/worker",
		GenerationTimeout: cfg.Worker.GenerationTimeout,
		TrainingTimeout:   cfg.Worker.TrainingTimeout,
	}
	jobUC := usecase.NewJobUseCase(jobRepo, subjectRepo, gpu, workerSettings, *logger)
	pollUC := usecase.NewPollUseCase(jobRepo)
	admissionUC := usecase.NewAdmissionUseCase(settingsRepo, usageRepo, leadRepo, claimRepo, jobRepo, eventLogRepo, jobUC, *logger)
	requestUC := usecase.NewRequestUseCase(requestRepo, subjectRepo, jobUC, pollUC,
		usecase.PollOptions{Interval: cfg.Poll.Interval, Timeout: cfg.Poll.Timeout}, *logger)
	webhookUC := usecase.NewWebhookUseCase(webhookEventRepo, jobRepo, leadRepo, usageRepo, requestRepo,
		subjectRepo, eventLogRepo, txManager,
		usecase.JobCosts{GenerationUSD: cfg.Worker.GenerationCostUSD, TrainingUSD: cfg.Worker.TrainingCostUSD},
		*logger)

	// ---- Admission worker ----
	admissionWorker := sched.NewAdmissionWorker(cfg.Scheduler.AdmissionInterval, admissionUC, logger)
	go func() { _ = admissionWorker.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(webhookUC, admissionUC, requestUC, jobUC, gpu, rateLimiter,
		cfg.Worker.WebhookSecret, cfg.HTTP.CronSecret, cfg.HTTP.AdminAPIKey, *logger)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.HTTP.Port); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
}
