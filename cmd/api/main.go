package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/requirements-analyzer/cmd/mainconfig"
	"github.com/wolfman30/requirements-analyzer/internal/api/router"
	"github.com/wolfman30/requirements-analyzer/internal/app/bootstrap"
	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
	httpmiddleware "github.com/wolfman30/requirements-analyzer/internal/http/middleware"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/internal/observability/metrics"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger, err := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logger.Warn("log file unavailable, logging to stdout only", "error", err)
	}
	defer logger.Close()

	logger.Info("starting requirements-analyzer API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api server failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, analysisMetrics := setupMetrics()

	var clients mainconfig.Clients
	if needsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		clients = mainconfig.NewClients(awsCfg, cfg)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	backends := bootstrap.Backends{Postgres: pool, Redis: redisClient, SES: clients.SES}
	if clients.S3 != nil {
		backends.S3 = clients.S3
	}
	sinks := bootstrap.BuildSinks(cfg, backends, logger)
	pipeline := bootstrap.BuildPipeline(cfg, analysisMetrics, logger)
	service := intake.NewService(pipeline, logger, sinks.ServiceOptions()...)
	logger.Info("record sinks configured", "sinks", sinks.Enabled())

	jobs := bootstrap.BuildJobBackend(cfg, clients.SQS, clients.Dynamo, logger)
	publisher := intake.NewPublisher(jobs.Queue, logger)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	var worker *intake.Worker
	if jobs.Memory {
		worker = intake.NewWorker(service, jobs.Queue, jobs.Jobs, logger,
			bootstrap.WorkerOptions(cfg, pool, analysisMetrics)...)
		worker.Start(workerCtx)
	}

	handlerOpts := []intake.HandlerOption{intake.WithPublisher(publisher, jobs.Jobs)}
	if sinks.History != nil {
		handlerOpts = append(handlerOpts, intake.WithHistory(sinks.History))
	}
	if sinks.Records != nil {
		handlerOpts = append(handlerOpts, intake.WithSummary(sinks.Records))
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Close()
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Intake:             intake.NewHandler(service, logger, handlerOpts...),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSOrigins,
		RateLimiter:        limiter,
		ReadinessChecks:    readinessChecks(pool, redisClient),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if worker != nil {
		cancelWorker()
		worker.Wait()
	}

	report := service.Snapshot()
	logger.Info("server stopped",
		"total_processed", report.TotalProcessed,
		"successful_analyses", report.Succeeded,
		"failed_analyses", report.Failed,
		"success_rate", report.SuccessRate,
	)
	return nil
}

func needsAWS(cfg *appconfig.Config) bool {
	queue := !cfg.UseMemoryQueue && cfg.AnalysisQueueURL != ""
	return queue || cfg.ArchiveBucket != "" || cfg.UsesSES()
}

func setupMetrics() (http.Handler, *metrics.AnalysisMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewAnalysisMetrics(reg)
}

func readinessChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
