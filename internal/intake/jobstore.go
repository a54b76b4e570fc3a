package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

const jobTTL = 24 * time.Hour

// JobStatus is the lifecycle of an async analysis job. A job whose message
// failed validation is still completed; failed means it never ran.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("intake: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord is the persisted state of an async analysis.
type JobRecord struct {
	JobID          string           `dynamodbav:"jobId" json:"jobId"`
	Status         JobStatus        `dynamodbav:"status" json:"status"`
	ConversationID string           `dynamodbav:"conversationId,omitempty" json:"conversationId,omitempty"`
	RecordJSON     string           `dynamodbav:"record,omitempty" json:"-"`
	Record         *analysis.Record `dynamodbav:"-" json:"record,omitempty"`
	ErrorMessage   string           `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt      string           `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt      string           `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt      int64            `dynamodbav:"expiresAt,omitempty" json:"-"`
}

type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

type JobUpdater interface {
	MarkCompleted(ctx context.Context, jobID string, rec analysis.Record) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// JobStore persists job records to DynamoDB.
type JobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ JobRecorder = (*JobStore)(nil)
var _ JobUpdater = (*JobStore)(nil)

func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("intake: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("intake: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{client: client, tableName: tableName, logger: logger, now: time.Now}
}

// PutPending inserts a new pending job. Existing job ids are never overwritten.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("intake: job cannot be nil")
	}
	now := s.now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("intake: failed to marshal job: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	}); err != nil {
		return fmt.Errorf("intake: failed to persist job: %w", err)
	}
	return nil
}

// MarkCompleted stores the analysis record on the job.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, rec analysis.Record) error {
	if jobID == "" {
		return errors.New("intake: jobID required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("intake: failed to marshal record: %w", err)
	}

	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":       &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":record":       &types.AttributeValueMemberS{Value: string(data)},
			":conversation": &types.AttributeValueMemberS{Value: rec.ConversationID},
			":error":        &types.AttributeValueMemberS{Value: ""},
			":updated":      &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, #record = :record, conversationId = :conversation, #error = :error, #updated = :updated",
	)
}

// MarkFailed records that the job could not be processed.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("intake: jobID required")
	}
	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":record":  &types.AttributeValueMemberNULL{Value: true},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, #record = :record, #error = :error, #updated = :updated",
	)
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("intake: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("intake: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}

	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("intake: failed to decode job: %w", err)
	}
	if job.RecordJSON != "" {
		var rec analysis.Record
		if err := json.Unmarshal([]byte(job.RecordJSON), &rec); err != nil {
			return nil, fmt.Errorf("intake: failed to decode job record: %w", err)
		}
		job.Record = &rec
	}
	return &job, nil
}

// "status" and "record" are DynamoDB reserved words.
var jobAttributeNames = map[string]string{
	"#status":  "status",
	"#record":  "record",
	"#error":   "errorMessage",
	"#updated": "updatedAt",
}

func (s *JobStore) updateJob(ctx context.Context, jobID string, values map[string]types.AttributeValue, expression string) error {
	if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  jobAttributeNames,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	}); err != nil {
		return fmt.Errorf("intake: failed to update job %s: %w", jobID, err)
	}
	return nil
}

// MemoryJobStore keeps jobs in process; used with the memory queue.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*JobRecord)}
}

var _ JobRecorder = (*MemoryJobStore)(nil)
var _ JobUpdater = (*MemoryJobStore)(nil)

func (s *MemoryJobStore) PutPending(_ context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("intake: job cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("intake: job %s already exists", job.JobID)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	job.Status = JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *MemoryJobStore) MarkCompleted(_ context.Context, jobID string, rec analysis.Record) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusCompleted
		job.ConversationID = rec.ConversationID
		job.Record = &rec
		job.ErrorMessage = ""
	})
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, jobID string, errMsg string) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusFailed
		job.Record = nil
		job.ErrorMessage = errMsg
	})
}

func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryJobStore) update(jobID string, fn func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("intake: failed to update job %s: %w", jobID, ErrJobNotFound)
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return nil
}
