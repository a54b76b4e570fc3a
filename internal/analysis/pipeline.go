package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

var pipelineTracer = otel.Tracer("analyzer/pipeline")

// Observer receives one observation per processed message.
type Observer interface {
	ObserveAnalysis(status string, errorKind string, flags []string, seconds float64)
}

// Pipeline validates, classifies and counts messages.
type Pipeline struct {
	recorder   *Recorder
	classifier *Classifier
	observer   Observer
	logger     *logging.Logger
	redaction  RedactionMode
	now        func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClassifier overrides the default classifier.
func WithClassifier(c *Classifier) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithObserver wires a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRedaction sets how inputs are stored on records built by Analyze.
func WithRedaction(mode RedactionMode) Option {
	return func(p *Pipeline) {
		p.redaction = mode
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline composes a pipeline around recorder.
func NewPipeline(recorder *Recorder, opts ...Option) *Pipeline {
	if recorder == nil {
		panic("analysis: recorder cannot be nil")
	}
	p := &Pipeline{
		recorder:   recorder,
		classifier: NewClassifier(),
		logger:     logging.Default(),
		redaction:  RedactPII,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one message through validation and classification and counts it.
// It never fails; rejected input comes back as a Result with Status failed.
func (p *Pipeline) Process(ctx context.Context, input any) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := pipelineTracer.Start(ctx, "analysis.process")
	defer span.End()

	start := time.Now()
	outcome := Validate(input)

	if !outcome.Valid() {
		failure := newFailure(outcome)
		seq := p.recorder.RecordFailure()
		p.logger.Warn("message rejected",
			"analysis_id", seq,
			"error", failure.Kind,
			"error_message", failure.Message,
		)
		span.SetAttributes(
			attribute.String("analysis.status", string(StatusFailed)),
			attribute.String("analysis.error_kind", string(failure.Kind)),
			attribute.Int64("analysis.sequence", seq),
		)
		p.observe(StatusFailed, failure.Kind, nil, time.Since(start))
		return Result{
			Status:      StatusFailed,
			Sequence:    seq,
			Error:       failure,
			ProcessedAt: p.now().UTC(),
		}
	}

	classification := p.classifier.Classify(outcome.Text)
	seq := p.recorder.RecordSuccess()

	flags := classification.Flags()
	for _, flag := range flags {
		p.logger.Debug("detected "+flag+" message", "analysis_id", seq)
	}
	p.logger.Debug("message analyzed",
		"analysis_id", seq,
		"word_count", classification.WordCount,
		"char_count", classification.CharCount,
		"has_question", classification.HasQuestion,
	)
	span.SetAttributes(
		attribute.String("analysis.status", string(StatusSucceeded)),
		attribute.Int64("analysis.sequence", seq),
		attribute.Int("analysis.word_count", classification.WordCount),
		attribute.StringSlice("analysis.flags", flags),
	)
	p.observe(StatusSucceeded, "", flags, time.Since(start))

	return Result{
		Status:         StatusSucceeded,
		Sequence:       seq,
		Classification: &classification,
		ProcessedAt:    p.now().UTC(),
	}
}

// Analyze processes req.Input once and returns a record of the invocation.
func (p *Pipeline) Analyze(ctx context.Context, req Request) Record {
	res := p.Process(ctx, req.Input)
	return newRecord(req, res, p.redaction)
}

// Snapshot reports the pipeline's counters.
func (p *Pipeline) Snapshot() Report {
	return p.recorder.Snapshot()
}

func (p *Pipeline) observe(status Status, kind ErrorKind, flags []string, elapsed time.Duration) {
	if p.observer == nil {
		return
	}
	p.observer.ObserveAnalysis(string(status), string(kind), flags, elapsed.Seconds())
}
