package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RedactedInput replaces the stored input under RedactFull.
const RedactedInput = "[REDACTED]"

// RedactionMode controls how the input is stored on a Record.
type RedactionMode string

const (
	RedactNone RedactionMode = "none"
	RedactPII  RedactionMode = "pii"
	RedactFull RedactionMode = "full"
)

// ParseRedactionMode maps a config value to a mode, defaulting to RedactPII.
func ParseRedactionMode(v string) RedactionMode {
	switch RedactionMode(strings.ToLower(strings.TrimSpace(v))) {
	case RedactNone:
		return RedactNone
	case RedactFull:
		return RedactFull
	default:
		return RedactPII
	}
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// Request is one message submitted for analysis.
type Request struct {
	ConversationID string
	Input          any
}

// Record is the caller-owned account of one analysis.
type Record struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Sequence       int64     `json:"analysis_number"`
	Input          string    `json:"message"`
	Result         Result    `json:"result"`
	Timestamp      time.Time `json:"processed_at"`
}

func newRecord(req Request, res Result, mode RedactionMode) Record {
	return Record{
		ID:             uuid.New(),
		ConversationID: req.ConversationID,
		Sequence:       res.Sequence,
		Input:          describeInput(req.Input, mode),
		Result:         res,
		Timestamp:      res.ProcessedAt,
	}
}

func describeInput(input any, mode RedactionMode) string {
	var text string
	switch v := input.(type) {
	case nil:
		return ""
	case string:
		text = v
	case *string:
		if v == nil {
			return ""
		}
		text = *v
	default:
		text = fmt.Sprintf("%v", v)
	}

	switch mode {
	case RedactFull:
		return RedactedInput
	case RedactNone:
		return text
	default:
		return ScrubPII(text)
	}
}
