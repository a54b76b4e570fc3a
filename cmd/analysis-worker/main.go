package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/requirements-analyzer/cmd/mainconfig"
	"github.com/wolfman30/requirements-analyzer/internal/app/bootstrap"
	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
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

	if cfg.UseMemoryQueue || cfg.AnalysisQueueURL == "" {
		logger.Error("analysis worker needs ANALYSIS_QUEUE_URL; the API runs an in-process worker for the memory queue")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	clients := mainconfig.NewClients(awsConfig, cfg)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
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

	reg := prometheus.NewRegistry()
	analysisMetrics := metrics.NewAnalysisMetrics(reg)
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	service := intake.NewService(bootstrap.BuildPipeline(cfg, analysisMetrics, logger), logger, sinks.ServiceOptions()...)

	jobs := bootstrap.BuildJobBackend(cfg, clients.SQS, clients.Dynamo, logger)
	worker := intake.NewWorker(
		service,
		jobs.Queue,
		jobs.Jobs,
		logger,
		bootstrap.WorkerOptions(cfg, pool, analysisMetrics)...,
	)

	logger.Info("starting analysis worker", "workers", cfg.WorkerCount, "sinks", sinks.Enabled())
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down analysis worker...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		report := service.Snapshot()
		logger.Info("analysis worker stopped",
			"total_processed", report.TotalProcessed,
			"success_rate", report.SuccessRate,
		)
	case <-doneCtx.Done():
		logger.Error("analysis worker shutdown timed out", "error", doneCtx.Err())
	}
}

// metricsRouter serves liveness and Prometheus metrics for the worker.
func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}
