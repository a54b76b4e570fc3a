package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// ErrInvalidPayload marks queue bodies that can never be processed.
var ErrInvalidPayload = errors.New("intake: invalid job payload")

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	maxReceiveBackoff    = 5 * time.Second
)

type jobObserver interface {
	ObserveJob(status string)
}

// JobDeduper tracks job ids that were already analyzed together with the
// record they produced. LookupProcessed returns ok=false for unknown jobs.
type JobDeduper interface {
	LookupProcessed(ctx context.Context, jobID string) (rec *analysis.Record, ok bool, err error)
	MarkProcessed(ctx context.Context, jobID string, rec analysis.Record) (bool, error)
}

// Worker drains the analysis queue.
type Worker struct {
	analyzer Analyzer
	queue    queueClient
	jobs     JobUpdater
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          jobObserver
	deduper          JobDeduper
}

type WorkerOption func(*workerConfig)

func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithMetrics counts handled jobs by status.
func WithMetrics(m jobObserver) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// WithDeduper skips analysis for jobs whose id was already analyzed; a
// redelivered tracked job only retries the job status update. Lookup
// failures are logged and the job is processed anyway.
func WithDeduper(d JobDeduper) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.deduper = d
	}
}

// NewWorker builds a worker. queue may be nil when the worker is only used
// through HandleBody, as in the Lambda entrypoint. jobs may be nil when job
// tracking is disabled.
func NewWorker(analyzer Analyzer, queue queueClient, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if analyzer == nil {
		panic("intake: analyzer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		analyzer: analyzer,
		queue:    queue,
		jobs:     jobs,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches the receive loops. They exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.queue == nil {
		panic("intake: worker has no queue")
	}
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until every receive loop has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("analysis worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("analysis worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("failed to receive analysis jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	if err := w.HandleBody(ctx, msg.Body); err != nil {
		w.logger.Error("analysis job failed", "error", err, "msg_id", msg.ID)
	}
	// Analysis is not idempotent: a redelivered job would be counted twice.
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// HandleBody processes one queue body. It returns an error wrapping
// ErrInvalidPayload for undecodable bodies and a plain error when the job
// status could not be stored.
func (w *Worker) HandleBody(ctx context.Context, body string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		w.cfg.observe("invalid")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	input, err := DecodeInput(payload.Message)
	if err != nil {
		w.cfg.observe("failed")
		w.markFailed(ctx, payload, "message is not valid JSON")
		return fmt.Errorf("%w: message: %v", ErrInvalidPayload, err)
	}

	if prev, seen := w.lookupProcessed(ctx, payload.ID); seen {
		w.cfg.observe("duplicate")
		w.logger.Info("skipping already processed analysis job", "job_id", payload.ID)
		if prev == nil {
			return nil
		}
		return w.markCompleted(ctx, payload, *prev)
	}

	rec := w.analyzer.Analyze(ctx, payload.ConversationID, input)
	w.logger.Info("analysis job processed",
		"job_id", payload.ID,
		"analysis_id", rec.Sequence,
		"status", rec.Result.Status,
	)
	// Marked before the status update so a retry after a store error does
	// not analyze the message again.
	w.markProcessed(ctx, payload.ID, rec)

	if err := w.markCompleted(ctx, payload, rec); err != nil {
		return err
	}
	w.cfg.observe("completed")
	return nil
}

func (w *Worker) markCompleted(ctx context.Context, payload queuePayload, rec analysis.Record) error {
	if !payload.TrackStatus || w.jobs == nil {
		return nil
	}
	if err := w.jobs.MarkCompleted(ctx, payload.ID, rec); err != nil {
		w.cfg.observe("store_error")
		return fmt.Errorf("intake: mark job %s completed: %w", payload.ID, err)
	}
	return nil
}

func (w *Worker) lookupProcessed(ctx context.Context, jobID string) (*analysis.Record, bool) {
	if w.cfg.deduper == nil || jobID == "" {
		return nil, false
	}
	rec, seen, err := w.cfg.deduper.LookupProcessed(ctx, jobID)
	if err != nil {
		w.logger.Warn("dedupe lookup failed", "error", err, "job_id", jobID)
		return nil, false
	}
	return rec, seen
}

func (w *Worker) markProcessed(ctx context.Context, jobID string, rec analysis.Record) {
	if w.cfg.deduper == nil || jobID == "" {
		return
	}
	if _, err := w.cfg.deduper.MarkProcessed(ctx, jobID, rec); err != nil {
		w.logger.Warn("failed to mark job processed", "error", err, "job_id", jobID)
	}
}

func (w *Worker) markFailed(ctx context.Context, payload queuePayload, reason string) {
	if !payload.TrackStatus || w.jobs == nil || payload.ID == "" {
		return
	}
	if err := w.jobs.MarkFailed(ctx, payload.ID, reason); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete analysis job", "error", err)
	}
}

func (cfg workerConfig) observe(status string) {
	if cfg.metrics != nil {
		cfg.metrics.ObserveJob(status)
	}
}
