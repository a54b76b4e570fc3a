package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/internal/observability/metrics"
	"github.com/wolfman30/requirements-analyzer/internal/records"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

const memoryQueueBuffer = 256

// JobStore records and updates async analysis jobs.
type JobStore interface {
	intake.JobRecorder
	intake.JobUpdater
}

// JobBackend is the queue and job store pair used by publisher and worker.
type JobBackend struct {
	Queue  intake.Queue
	Jobs   JobStore
	Memory bool // queue lives in this process; a worker must run alongside
}

// BuildJobBackend picks SQS and DynamoDB when configured, else an in-process
// queue with an in-memory job store.
func BuildJobBackend(cfg *appconfig.Config, sqsClient *sqs.Client, dynamoClient *dynamodb.Client, logger *logging.Logger) JobBackend {
	if logger == nil {
		logger = logging.Default()
	}
	useSQS := cfg != nil && !cfg.UseMemoryQueue && sqsClient != nil && dynamoClient != nil &&
		strings.TrimSpace(cfg.AnalysisQueueURL) != ""
	if !useSQS {
		logger.Info("using in-memory analysis queue")
		return JobBackend{
			Queue:  intake.NewMemoryQueue(memoryQueueBuffer),
			Jobs:   intake.NewMemoryJobStore(),
			Memory: true,
		}
	}
	logger.Info("using SQS analysis queue", "queue_url", cfg.AnalysisQueueURL, "jobs_table", cfg.AnalysisJobsTable)
	return JobBackend{
		Queue: intake.NewSQSQueue(sqsClient, cfg.AnalysisQueueURL),
		Jobs:  intake.NewJobStore(dynamoClient, cfg.AnalysisJobsTable, logger),
	}
}

// WorkerOptions returns the worker options shared by every binary that drains
// the queue. pool enables redelivery dedupe; observer may be nil.
func WorkerOptions(cfg *appconfig.Config, pool *pgxpool.Pool, observer *metrics.AnalysisMetrics) []intake.WorkerOption {
	var opts []intake.WorkerOption
	if cfg != nil {
		opts = append(opts, intake.WithWorkerCount(cfg.WorkerCount))
	}
	if observer != nil {
		opts = append(opts, intake.WithMetrics(observer))
	}
	if pool != nil {
		opts = append(opts, intake.WithDeduper(records.NewProcessedJobs(pool)))
	}
	return opts
}
