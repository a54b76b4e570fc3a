package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

type failingSender struct{}

func (failingSender) Send(context.Context, EmailMessage) error { return errors.New("smtp down") }

func analyze(t *testing.T, input any) analysis.Record {
	t.Helper()
	p := analysis.NewPipeline(analysis.NewRecorder(), analysis.WithLogger(logging.Discard()))
	return p.Analyze(context.Background(), analysis.Request{ConversationID: "conv-9", Input: input})
}

func TestUrgentAlerter_SendsForUrgent(t *testing.T) {
	sender := NewStubEmailSender(logging.Discard())
	alerter := NewUrgentAlerter(sender, " oncall@example.com ", logging.Discard())
	require.NotNil(t, alerter)

	require.NoError(t, alerter.Save(context.Background(), analyze(t, "URGENT please help ASAP")))

	require.Equal(t, 1, sender.Count())
	msg, ok := sender.Last()
	require.True(t, ok)
	assert.Equal(t, "oncall@example.com", msg.To)
	assert.Equal(t, "Urgent message #1 in conv-9", msg.Subject)
	assert.Contains(t, msg.Body, "Keywords: urgent, asap")
	assert.True(t, strings.Contains(msg.Body, "Message: URGENT please help ASAP"))
}

func TestUrgentAlerter_IgnoresOtherRecords(t *testing.T) {
	sender := NewStubEmailSender(logging.Discard())
	alerter := NewUrgentAlerter(sender, "oncall@example.com", logging.Discard())

	for _, in := range []any{"hello there", nil, 42, "   "} {
		require.NoError(t, alerter.Save(context.Background(), analyze(t, in)))
	}
	assert.Zero(t, sender.Count())
}

func TestUrgentAlerter_ConcurrentSaveWithStubFallback(t *testing.T) {
	sender := NewEmailSender(Config{Provider: "sendgrid"}, nil, logging.Discard())
	stub, ok := sender.(*StubEmailSender)
	require.True(t, ok, "sendgrid without a key falls back to the stub")
	alerter := NewUrgentAlerter(sender, "oncall@example.com", logging.Discard())
	rec := analyze(t, "urgent: the build is broken")
	require.True(t, rec.Result.Classification.IsUrgent)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, alerter.Save(context.Background(), rec))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, stub.Count())
	last, ok := stub.Last()
	require.True(t, ok)
	assert.Equal(t, "oncall@example.com", last.To)
}

func TestUrgentAlerter_SendError(t *testing.T) {
	alerter := NewUrgentAlerter(failingSender{}, "oncall@example.com", logging.Discard())
	err := alerter.Save(context.Background(), analyze(t, "this is critical"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urgent alert")
}

func TestNewUrgentAlerter_Disabled(t *testing.T) {
	assert.Nil(t, NewUrgentAlerter(nil, "oncall@example.com", nil))
	assert.Nil(t, NewUrgentAlerter(NewStubEmailSender(nil), "  ", nil))

	var alerter *UrgentAlerter
	assert.NoError(t, alerter.Save(context.Background(), analysis.Record{}))
}
