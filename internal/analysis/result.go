package analysis

import (
	"fmt"
	"time"
)

// ErrorKind enumerates validation failures reported to callers.
type ErrorKind string

const (
	ErrorNullInput      ErrorKind = "null_input"
	ErrorWrongType      ErrorKind = "wrong_type"
	ErrorEmptyAfterTrim ErrorKind = "empty_after_trim"
)

// Status is the tag of a Result.
type Status string

const (
	StatusSucceeded Status = "success"
	StatusFailed    Status = "failed"
)

// Failure describes a rejected message.
type Failure struct {
	Kind    ErrorKind `json:"error"`
	Message string    `json:"error_message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is the outcome of one pipeline invocation. Exactly one of
// Classification and Error is set, matching Status.
type Result struct {
	Status         Status          `json:"status"`
	Sequence       int64           `json:"analysis_number"`
	Classification *Classification `json:"classification,omitempty"`
	Error          *Failure        `json:"failure,omitempty"`
	ProcessedAt    time.Time       `json:"processed_at"`
}

// Succeeded reports whether the message was classified.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

func newFailure(outcome Outcome) *Failure {
	f := &Failure{Kind: outcome.Reason.Kind()}
	switch outcome.Reason {
	case ReasonNullInput:
		f.Message = "message cannot be null"
	case ReasonWrongType:
		f.Message = fmt.Sprintf("message must be text, got %s", outcome.Type)
	case ReasonEmptyAfterTrim:
		f.Message = "message cannot be empty or contain only whitespace"
	}
	return f
}
