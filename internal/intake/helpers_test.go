package intake

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

func newTestService(opts ...ServiceOption) *Service {
	pipeline := analysis.NewPipeline(analysis.NewRecorder(), analysis.WithLogger(logging.Discard()))
	return NewService(pipeline, logging.Discard(), opts...)
}

type stubQueue struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
	deleted []string
}

func (s *stubQueue) Send(_ context.Context, body string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(_ context.Context, receiptHandle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, receiptHandle)
	return nil
}

type captureSink struct {
	mu      sync.Mutex
	records []analysis.Record
	err     error
}

func (c *captureSink) Save(_ context.Context, rec analysis.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type failingUpdater struct{}

func (failingUpdater) MarkCompleted(context.Context, string, analysis.Record) error {
	return errors.New("table unavailable")
}

func (failingUpdater) MarkFailed(context.Context, string, string) error {
	return errors.New("table unavailable")
}
