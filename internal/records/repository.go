package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
)

// ErrRecordNotFound is returned when no analysis record matches.
var ErrRecordNotFound = errors.New("records: record not found")

const defaultListLimit = 50

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Summary aggregates persisted analyses.
type Summary struct {
	Total       int64   `json:"total_processed"`
	Succeeded   int64   `json:"successful_analyses"`
	Failed      int64   `json:"failed_analyses"`
	SuccessRate float64 `json:"success_rate"`
}

// Repository persists analysis records to Postgres.
type Repository struct {
	db querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(db querier) *Repository {
	if db == nil {
		panic("records: querier required")
	}
	return &Repository{db: db}
}

// Save implements intake.RecordSink.
func (r *Repository) Save(ctx context.Context, rec analysis.Record) error {
	return r.Insert(ctx, rec)
}

// Insert stores rec. Inserting the same id twice is a no-op.
func (r *Repository) Insert(ctx context.Context, rec analysis.Record) error {
	var classification []byte
	if rec.Result.Classification != nil {
		data, err := json.Marshal(rec.Result.Classification)
		if err != nil {
			return fmt.Errorf("records: marshal classification: %w", err)
		}
		classification = data
	}
	var errorKind, errorMessage *string
	if rec.Result.Error != nil {
		kind := string(rec.Result.Error.Kind)
		errorKind = &kind
		errorMessage = &rec.Result.Error.Message
	}

	query := `
		INSERT INTO analysis_records
			(id, conversation_id, sequence, input, status, classification, error_kind, error_message, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.ConversationID,
		rec.Sequence,
		rec.Input,
		string(rec.Result.Status),
		classification,
		errorKind,
		errorMessage,
		rec.Timestamp,
	); err != nil {
		return fmt.Errorf("records: insert: %w", err)
	}
	return nil
}

const selectColumns = `id, conversation_id, sequence, input, status, classification, error_kind, error_message, processed_at`

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*analysis.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM analysis_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("records: get: %w", err)
	}
	return rec, nil
}

// ListByConversation returns the newest records for a conversation first.
func (r *Repository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]analysis.Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + selectColumns + `
		FROM analysis_records
		WHERE conversation_id = $1
		ORDER BY processed_at DESC, sequence DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()

	var out []analysis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("records: scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	return out, nil
}

// Summary counts persisted records by status.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM analysis_records
	`
	var s Summary
	if err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.Succeeded, &s.Failed); err != nil {
		return Summary{}, fmt.Errorf("records: summary: %w", err)
	}
	s.SuccessRate = analysis.SuccessRate(s.Succeeded, s.Total)
	return s, nil
}

func scanRecord(row pgx.Row) (*analysis.Record, error) {
	var (
		rec            analysis.Record
		status         string
		classification []byte
		errorKind      *string
		errorMessage   *string
		processedAt    time.Time
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.Sequence,
		&rec.Input,
		&status,
		&classification,
		&errorKind,
		&errorMessage,
		&processedAt,
	); err != nil {
		return nil, err
	}
	rec.Timestamp = processedAt.UTC()
	rec.Result = analysis.Result{
		Status:      analysis.Status(status),
		Sequence:    rec.Sequence,
		ProcessedAt: rec.Timestamp,
	}
	if len(classification) > 0 {
		var c analysis.Classification
		if err := json.Unmarshal(classification, &c); err != nil {
			return nil, fmt.Errorf("decode classification: %w", err)
		}
		rec.Result.Classification = &c
	}
	if errorKind != nil {
		f := &analysis.Failure{Kind: analysis.ErrorKind(*errorKind)}
		if errorMessage != nil {
			f.Message = *errorMessage
		}
		rec.Result.Error = f
	}
	return &rec, nil
}
