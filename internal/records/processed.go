package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
)

// ProcessedJobs remembers async jobs that were already analyzed so a
// redelivered queue message is not counted twice.
type ProcessedJobs struct {
	db querier
}

func NewProcessedJobs(pool *pgxpool.Pool) *ProcessedJobs {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &ProcessedJobs{db: pool}
}

func newProcessedJobsWithQuerier(db querier) *ProcessedJobs {
	if db == nil {
		panic("records: querier required")
	}
	return &ProcessedJobs{db: db}
}

// LookupProcessed reports whether jobID has been handled and returns the
// record stored with it, if any.
func (p *ProcessedJobs) LookupProcessed(ctx context.Context, jobID string) (*analysis.Record, bool, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT record FROM processed_jobs WHERE job_id = $1`, jobID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("records: check processed job: %w", err)
	}
	if len(raw) == 0 {
		return nil, true, nil
	}
	var rec analysis.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, true, fmt.Errorf("records: decode processed job record: %w", err)
	}
	return &rec, true, nil
}

// MarkProcessed records jobID and its record, returning false if the job
// was already present.
func (p *ProcessedJobs) MarkProcessed(ctx context.Context, jobID string, rec analysis.Record) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("records: encode processed job record: %w", err)
	}
	ct, err := p.db.Exec(ctx, `
		INSERT INTO processed_jobs (job_id, record)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, jobID, raw)
	if err != nil {
		return false, fmt.Errorf("records: mark processed job: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
