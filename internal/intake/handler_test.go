package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/internal/records"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

type stubHistory struct {
	records []analysis.Record
	err     error
	limit   int64
}

func (s *stubHistory) List(_ context.Context, _ string, limit int64) ([]analysis.Record, error) {
	s.limit = limit
	return s.records, s.err
}

type stubSummary struct {
	summary records.Summary
	err     error
}

func (s stubSummary) Summary(context.Context) (records.Summary, error) {
	return s.summary, s.err
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/analyses", h.Analyze)
	r.Post("/v1/analyses/jobs", h.EnqueueJob)
	r.Get("/v1/analyses/jobs/{jobID}", h.GetJob)
	r.Get("/v1/conversations/{conversationID}/analyses", h.ConversationHistory)
	r.Get("/admin/stats", h.Stats)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AnalyzeScenarios(t *testing.T) {
	h := NewHandler(newTestService(), logging.Discard())
	router := newTestRouter(h)

	cases := []struct {
		body       string
		wantStatus int
		wantKind   analysis.ErrorKind
	}{
		{body: `{"message":"Is there a bus to Jerusalem?"}`, wantStatus: http.StatusOK},
		{body: `{"message":"URGENT please help ASAP"}`, wantStatus: http.StatusOK},
		{body: `{"message":""}`, wantStatus: http.StatusUnprocessableEntity, wantKind: analysis.ErrorEmptyAfterTrim},
		{body: `{"message":null}`, wantStatus: http.StatusUnprocessableEntity, wantKind: analysis.ErrorNullInput},
		{body: `{"message":123}`, wantStatus: http.StatusUnprocessableEntity, wantKind: analysis.ErrorWrongType},
	}
	for i, tc := range cases {
		rec := doRequest(t, router, http.MethodPost, "/v1/analyses", tc.body)
		require.Equal(t, tc.wantStatus, rec.Code, tc.body)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got analysis.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(i+1), got.Sequence)
		if tc.wantKind != "" {
			require.NotNil(t, got.Result.Error)
			assert.Equal(t, tc.wantKind, got.Result.Error.Kind)
		} else {
			require.NotNil(t, got.Result.Classification)
		}
	}

	stats := doRequest(t, router, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, stats.Code)
	var body struct {
		Recorder  analysis.Report  `json:"recorder"`
		Persisted *records.Summary `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.Recorder.TotalProcessed)
	assert.Equal(t, int64(2), body.Recorder.Succeeded)
	assert.Equal(t, int64(3), body.Recorder.Failed)
	assert.InDelta(t, 0.4, body.Recorder.SuccessRate, 1e-9)
	assert.Nil(t, body.Persisted)
}

func TestHandler_AnalyzeMissingMessageIsNull(t *testing.T) {
	router := newTestRouter(NewHandler(newTestService(), logging.Discard()))
	rec := doRequest(t, router, http.MethodPost, "/v1/analyses", `{"conversation_id":"c1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"null_input"`)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"c1"`)
}

func TestHandler_AnalyzeBadBody(t *testing.T) {
	svc := newTestService()
	router := newTestRouter(NewHandler(svc, logging.Discard()))
	rec := doRequest(t, router, http.MethodPost, "/v1/analyses", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), svc.Snapshot().TotalProcessed, "undecodable bodies are not counted")
}

func TestHandler_JobsLifecycle(t *testing.T) {
	queue := &stubQueue{}
	jobs := NewMemoryJobStore()
	h := NewHandler(newTestService(), logging.Discard(), WithPublisher(NewPublisher(queue, logging.Discard()), jobs))
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/v1/analyses/jobs", `{"conversation_id":"c1","message":"hello"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	jobID := accepted["jobId"]
	require.NotEmpty(t, jobID)
	require.Len(t, queue.sent, 1)

	rec = doRequest(t, router, http.MethodGet, "/v1/analyses/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = doRequest(t, router, http.MethodGet, "/v1/analyses/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_JobsNotConfigured(t *testing.T) {
	router := newTestRouter(NewHandler(newTestService(), logging.Discard()))
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, router, http.MethodPost, "/v1/analyses/jobs", `{"message":"x"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, router, http.MethodGet, "/v1/analyses/jobs/x", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, router, http.MethodGet, "/v1/conversations/c1/analyses", "").Code)
}

func TestHandler_EnqueueFailure(t *testing.T) {
	queue := &stubQueue{sendErr: errors.New("down")}
	h := NewHandler(newTestService(), logging.Discard(), WithPublisher(NewPublisher(queue, logging.Discard()), nil))
	rec := doRequest(t, newTestRouter(h), http.MethodPost, "/v1/analyses/jobs", `{"message":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_EnqueueFailureMarksJobFailed(t *testing.T) {
	queue := &stubQueue{sendErr: errors.New("down")}
	jobs := NewMemoryJobStore()
	h := NewHandler(newTestService(), logging.Discard(), WithPublisher(NewPublisher(queue, logging.Discard()), jobs))
	rec := doRequest(t, newTestRouter(h), http.MethodPost, "/v1/analyses/jobs", `{"message":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	jobs.mu.RLock()
	defer jobs.mu.RUnlock()
	require.Len(t, jobs.jobs, 1)
	for _, job := range jobs.jobs {
		assert.Equal(t, JobStatusFailed, job.Status)
		assert.Equal(t, "failed to enqueue job", job.ErrorMessage)
	}
}

func TestHandler_ConversationHistory(t *testing.T) {
	history := &stubHistory{records: []analysis.Record{{ConversationID: "c1", Sequence: 1}}}
	router := newTestRouter(NewHandler(newTestService(), logging.Discard(), WithHistory(history)))

	rec := doRequest(t, router, http.MethodGet, "/v1/conversations/c1/analyses?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), history.limit)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"c1"`)

	rec = doRequest(t, router, http.MethodGet, "/v1/conversations/c1/analyses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(defaultHistoryLimit), history.limit)

	rec = doRequest(t, router, http.MethodGet, "/v1/conversations/c1/analyses?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	history.err = errors.New("redis down")
	rec = doRequest(t, router, http.MethodGet, "/v1/conversations/c1/analyses", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_StatsWithPersistedSummary(t *testing.T) {
	summary := stubSummary{summary: records.Summary{Total: 10, Succeeded: 4, Failed: 6, SuccessRate: 0.4}}
	router := newTestRouter(NewHandler(newTestService(), logging.Discard(), WithSummary(summary)))

	rec := doRequest(t, router, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"persisted":{"total_processed":10`)
	assert.Contains(t, rec.Body.String(), `"recorder":{"total_processed":0`)
}
