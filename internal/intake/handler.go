package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/internal/records"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
)

// JobPublisher enqueues async analyses.
type JobPublisher interface {
	Enqueue(ctx context.Context, jobID string, job Job, opts ...PublishOption) error
}

// HistoryReader lists recent analyses for a conversation.
type HistoryReader interface {
	List(ctx context.Context, conversationID string, limit int64) ([]analysis.Record, error)
}

// SummaryReader reports persisted totals.
type SummaryReader interface {
	Summary(ctx context.Context) (records.Summary, error)
}

// Handler wires HTTP requests to the intake service.
type Handler struct {
	service   *Service
	publisher JobPublisher
	jobs      JobRecorder
	history   HistoryReader
	summary   SummaryReader
	logger    *logging.Logger
}

type HandlerOption func(*Handler)

func WithPublisher(p JobPublisher, jobs JobRecorder) HandlerOption {
	return func(h *Handler) {
		h.publisher = p
		h.jobs = jobs
	}
}

func WithHistory(r HistoryReader) HandlerOption {
	return func(h *Handler) { h.history = r }
}

func WithSummary(r SummaryReader) HandlerOption {
	return func(h *Handler) { h.summary = r }
}

func NewHandler(service *Service, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if service == nil {
		panic("intake: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AnalyzeRequest is the body of POST /v1/analyses and /v1/analyses/jobs.
type AnalyzeRequest struct {
	ConversationID string          `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Analyze handles POST /v1/analyses. Rejected messages return 422 with the
// same record shape as successes.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAnalyzeRequest(r)
	if err != nil {
		h.logger.Warn("failed to decode analyze request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	input, err := DecodeInput(req.Message)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message"})
		return
	}

	rec := h.service.Analyze(r.Context(), req.ConversationID, input)
	status := http.StatusOK
	if !rec.Result.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, rec)
}

// EnqueueJob handles POST /v1/analyses/jobs.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "async analysis is not configured"})
		return
	}
	req, err := decodeAnalyzeRequest(r)
	if err != nil {
		h.logger.Warn("failed to decode job request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	jobID := uuid.NewString()
	if h.jobs != nil {
		if err := h.jobs.PutPending(r.Context(), &JobRecord{JobID: jobID, ConversationID: req.ConversationID}); err != nil {
			h.logger.Error("failed to persist job", "error", err, "job_id", jobID)
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create job"})
			return
		}
	}

	var opts []PublishOption
	if h.jobs == nil {
		opts = append(opts, WithoutJobTracking())
	}
	if err := h.publisher.Enqueue(r.Context(), jobID, Job{ConversationID: req.ConversationID, Message: req.Message}, opts...); err != nil {
		h.logger.Error("failed to enqueue job", "error", err, "job_id", jobID)
		if updater, ok := h.jobs.(JobUpdater); ok {
			if markErr := updater.MarkFailed(r.Context(), jobID, "failed to enqueue job"); markErr != nil {
				h.logger.Error("failed to update job status", "error", markErr, "job_id", jobID)
			}
		}
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to enqueue job"})
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": string(JobStatusPending),
	})
}

// GetJob handles GET /v1/analyses/jobs/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "job tracking is not configured"})
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
			return
		}
		h.logger.Error("failed to load job", "error", err, "job_id", jobID)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load job"})
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// ConversationHistory handles GET /v1/conversations/{conversationID}/analyses.
func (h *Handler) ConversationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history is not configured"})
		return
	}
	conversationID := chi.URLParam(r, "conversationID")
	limit := int64(defaultHistoryLimit)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	list, err := h.history.List(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err, "conversation_id", conversationID)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}
	if list == nil {
		list = []analysis.Record{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"analyses":        list,
	})
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Recorder  analysis.Report  `json:"recorder"`
		Persisted *records.Summary `json:"persisted,omitempty"`
	}{Recorder: h.service.Snapshot()}

	if h.summary != nil {
		s, err := h.summary.Summary(r.Context())
		if err != nil {
			h.logger.Warn("failed to load persisted summary", "error", err)
		} else {
			resp.Persisted = &s
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func decodeAnalyzeRequest(r *http.Request) (AnalyzeRequest, error) {
	var req AnalyzeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return AnalyzeRequest{}, err
	}
	return req, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
