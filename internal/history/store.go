// Package history keeps a short rolling list of analyses per conversation in Redis.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
)

const (
	keyPrefix            = "analysis_history:"
	DefaultMaxRecords    = 100
	DefaultTTL           = 24 * time.Hour
	unscopedConversation = "_unscoped"
)

// Store appends analysis records to a capped Redis list per conversation.
type Store struct {
	redis      *redis.Client
	tracer     trace.Tracer
	maxRecords int64
	ttl        time.Duration
}

// NewStore returns nil when redisClient is nil; a nil Store is a no-op.
func NewStore(redisClient *redis.Client, maxRecords int, ttl time.Duration) *Store {
	if redisClient == nil {
		return nil
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:      redisClient,
		tracer:     otel.Tracer("analyzer/history"),
		maxRecords: int64(maxRecords),
		ttl:        ttl,
	}
}

// Save implements intake.RecordSink. Records without a conversation are kept
// under a shared key.
func (s *Store) Save(ctx context.Context, rec analysis.Record) error {
	conversationID := rec.ConversationID
	if conversationID == "" {
		conversationID = unscopedConversation
	}
	return s.Append(ctx, conversationID, rec)
}

func (s *Store) Append(ctx context.Context, conversationID string, rec analysis.Record) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if conversationID == "" {
		return errors.New("history: conversationID required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "history.append")
	defer span.End()
	span.SetAttributes(
		attribute.String("history.conversation_id", conversationID),
		attribute.Int64("analysis.sequence", rec.Sequence),
	)

	key := historyKey(conversationID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.LTrim(ctx, key, -s.maxRecords, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// List returns up to limit of the most recent records, oldest first.
// limit <= 0 returns everything retained.
func (s *Store) List(ctx context.Context, conversationID string, limit int64) ([]analysis.Record, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if conversationID == "" {
		return nil, errors.New("history: conversationID required")
	}

	ctx, span := s.tracer.Start(ctx, "history.list")
	defer span.End()
	span.SetAttributes(attribute.String("history.conversation_id", conversationID))

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, historyKey(conversationID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []analysis.Record{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("history: list: %w", err)
	}

	out := make([]analysis.Record, 0, len(raw))
	for _, item := range raw {
		var rec analysis.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	span.SetAttributes(attribute.Int("history.records", len(out)))
	return out, nil
}

func historyKey(conversationID string) string {
	return keyPrefix + conversationID
}
