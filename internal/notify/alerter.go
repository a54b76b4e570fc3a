package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// UrgentAlerter emails an operator when a message is classified urgent.
// It is a record sink; non-urgent and rejected records are ignored.
type UrgentAlerter struct {
	sender    EmailSender
	recipient string
	logger    *logging.Logger
}

// NewUrgentAlerter returns nil when sender or recipient is missing.
func NewUrgentAlerter(sender EmailSender, recipient string, logger *logging.Logger) *UrgentAlerter {
	recipient = strings.TrimSpace(recipient)
	if sender == nil || recipient == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &UrgentAlerter{sender: sender, recipient: recipient, logger: logger}
}

func (a *UrgentAlerter) Save(ctx context.Context, rec analysis.Record) error {
	if a == nil {
		return nil
	}
	c := rec.Result.Classification
	if !rec.Result.Succeeded() || c == nil || !c.IsUrgent {
		return nil
	}

	var keywords []string
	for _, m := range c.Matches {
		if m.Category == analysis.CategoryUrgent {
			keywords = append(keywords, m.Keyword)
		}
	}

	subject := fmt.Sprintf("Urgent message #%d", rec.Sequence)
	if rec.ConversationID != "" {
		subject += " in " + rec.ConversationID
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Analysis %s was classified urgent.\n\n", rec.ID)
	fmt.Fprintf(&body, "Message: %s\n", rec.Input)
	fmt.Fprintf(&body, "Keywords: %s\n", strings.Join(keywords, ", "))
	fmt.Fprintf(&body, "Question: %t\n", c.HasQuestion)
	fmt.Fprintf(&body, "Processed at: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05 MST"))

	if err := a.sender.Send(ctx, EmailMessage{
		To:      a.recipient,
		Subject: subject,
		Body:    body.String(),
	}); err != nil {
		return fmt.Errorf("notify: urgent alert: %w", err)
	}
	a.logger.Debug("urgent alert sent", "analysis_id", rec.Sequence)
	return nil
}

// Config selects an email provider.
type Config struct {
	Provider       string // sendgrid, ses or stub
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// NewEmailSender builds the configured sender, falling back to the stub when
// the chosen provider is not usable.
func NewEmailSender(cfg Config, ses sesAPI, logger *logging.Logger) EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "sendgrid":
		if s := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected without API key, using stub email sender")
	case "ses":
		if s := NewSESSender(ses, SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s
		}
		logger.Warn("ses selected without client, using stub email sender")
	}
	return NewStubEmailSender(logger)
}
