// Package intake accepts messages over HTTP, websocket and queues, runs them
// through the analysis pipeline and fans the resulting records out to sinks.
package intake

import (
	"context"
	"encoding/json"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// RecordSink receives every analysis record. Sinks are best effort.
type RecordSink interface {
	Save(ctx context.Context, rec analysis.Record) error
}

// Analyzer produces a record for one message.
type Analyzer interface {
	Analyze(ctx context.Context, conversationID string, input any) analysis.Record
}

type namedSink struct {
	name string
	sink RecordSink
}

// Service wraps the pipeline and forwards records to sinks.
type Service struct {
	pipeline *analysis.Pipeline
	sinks    []namedSink
	logger   *logging.Logger
}

type ServiceOption func(*Service)

// WithSink registers a sink under name, used in logs.
func WithSink(name string, sink RecordSink) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
		}
	}
}

func NewService(pipeline *analysis.Pipeline, logger *logging.Logger, opts ...ServiceOption) *Service {
	if pipeline == nil {
		panic("intake: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{pipeline: pipeline, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Analyzer = (*Service)(nil)

// Analyze processes input and hands the record to every sink.
func (s *Service) Analyze(ctx context.Context, conversationID string, input any) analysis.Record {
	if ctx == nil {
		ctx = context.Background()
	}
	rec := s.pipeline.Analyze(ctx, analysis.Request{ConversationID: conversationID, Input: input})
	for _, ns := range s.sinks {
		if err := ns.sink.Save(ctx, rec); err != nil {
			s.logger.Warn("record sink failed",
				"sink", ns.name,
				"error", err,
				"analysis_id", rec.Sequence,
				"conversation_id", conversationID,
			)
		}
	}
	return rec
}

// Snapshot reports the in-process counters.
func (s *Service) Snapshot() analysis.Report {
	return s.pipeline.Snapshot()
}

// DecodeInput turns a raw JSON message into a pipeline input. A missing
// value and JSON null both decode to nil.
func DecodeInput(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
