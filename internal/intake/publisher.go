package intake

import (
	"context"
	"fmt"

	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// Publisher enqueues analysis jobs for the worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("intake: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes job under jobID. Status tracking is on unless disabled.
func (p *Publisher) Enqueue(ctx context.Context, jobID string, job Job, opts ...PublishOption) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := queuePayload{
		ID:             jobID,
		ConversationID: job.ConversationID,
		Message:        job.Message,
		TrackStatus:    true,
	}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("intake: failed to enqueue job: %w", err)
	}

	p.logger.Debug("analysis job enqueued", "job_id", payload.ID, "track_status", payload.TrackStatus)
	return nil
}
