package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue is the transport shared by Publisher and Worker.
type Queue = queueClient

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Job is an analysis request submitted for asynchronous processing.
type Job struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        json.RawMessage `json:"message"`
}

type queuePayload struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        json.RawMessage `json:"message"`
	TrackStatus    bool            `json:"track_status"`
}

type PublishOption func(*queuePayload)

// WithoutJobTracking disables job status persistence for fire-and-forget work.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if len(payload.Message) == 0 {
		payload.Message = json.RawMessage("null")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("intake: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}
