package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wolfman30/requirements-analyzer/cmd/mainconfig"
	"github.com/wolfman30/requirements-analyzer/internal/app/bootstrap"
	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

type bodyHandler interface {
	HandleBody(ctx context.Context, body string) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		panic(err)
	}
	clients := mainconfig.NewClients(awsCfg, cfg)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		panic(err)
	}
	backends := bootstrap.Backends{
		Postgres: pool,
		Redis:    bootstrap.BuildRedisClient(ctx, cfg, logger, true),
		SES:      clients.SES,
	}
	if clients.S3 != nil {
		backends.S3 = clients.S3
	}
	sinks := bootstrap.BuildSinks(cfg, backends, logger)
	service := intake.NewService(bootstrap.BuildPipeline(cfg, nil, logger), logger, sinks.ServiceOptions()...)

	// SQS delivers messages to the function, so only the job store is needed
	jobs := intake.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.AnalysisJobsTable, logger)
	worker := intake.NewWorker(service, nil, jobs, logger, bootstrap.WorkerOptions(nil, pool, nil)...)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, worker, logger, evt), nil
	})
}

// handle processes a batch and reports retryable failures. Undecodable
// messages are dropped since a retry cannot fix them.
func handle(ctx context.Context, h bodyHandler, logger *logging.Logger, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		err := h.HandleBody(ctx, record.Body)
		switch {
		case err == nil:
		case errors.Is(err, intake.ErrInvalidPayload):
			logger.Warn("dropping invalid analysis job", "message_id", record.MessageId, "error", err)
		default:
			logger.Error("analysis job failed, will retry", "message_id", record.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp
}
