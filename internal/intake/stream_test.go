package intake

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

func dialStream(t *testing.T, h *Handler, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStream_AnalyzesFrames(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(newTestService(WithSink("capture", sink)), logging.Discard())
	conn := dialStream(t, h, "?conversation=live-1")

	require.NoError(t, websocket.Message.Send(conn, `{"type":"message","text":"Good morning, is the bus late?"}`))
	var out StreamOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "analysis", out.Type)
	require.NotNil(t, out.Record)
	assert.Equal(t, "live-1", out.Record.ConversationID)
	require.NotNil(t, out.Record.Result.Classification)
	assert.True(t, out.Record.Result.Classification.IsGreeting)
	assert.True(t, out.Record.Result.Classification.HasQuestion)

	require.NoError(t, websocket.Message.Send(conn, `{"type":"message","message":42,"conversation_id":"other"}`))
	out = StreamOutbound{}
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	require.NotNil(t, out.Record)
	assert.Equal(t, "other", out.Record.ConversationID)
	assert.Equal(t, analysis.ErrorWrongType, out.Record.Result.Error.Kind)

	require.NoError(t, websocket.Message.Send(conn, `{"type":"message"}`))
	out = StreamOutbound{}
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, analysis.ErrorNullInput, out.Record.Result.Error.Kind)

	assert.Equal(t, 3, sink.count())
}

func TestStream_PingAndBadFrames(t *testing.T) {
	svc := newTestService()
	conn := dialStream(t, NewHandler(svc, logging.Discard()), "")

	require.NoError(t, websocket.Message.Send(conn, `{"type":"ping"}`))
	var out StreamOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "pong", out.Type)

	require.NoError(t, websocket.Message.Send(conn, `not json`))
	out = StreamOutbound{}
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "error", out.Type)

	assert.Equal(t, int64(0), svc.Snapshot().TotalProcessed)
}
