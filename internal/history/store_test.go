package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func testRecord(seq int64, text string) analysis.Record {
	ts := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second)
	return analysis.Record{
		ID:             uuid.New(),
		ConversationID: "conv-1",
		Sequence:       seq,
		Input:          text,
		Timestamp:      ts,
		Result: analysis.Result{
			Status:         analysis.StatusSucceeded,
			Sequence:       seq,
			Classification: &analysis.Classification{WordCount: 1, CharCount: len(text)},
			ProcessedAt:    ts,
		},
	}
}

func TestStore_AppendAndList(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, 0, 0)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.Save(ctx, testRecord(i, fmt.Sprintf("msg%d", i))))
	}

	all, err := store.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Sequence)
	assert.Equal(t, "msg3", all[2].Input)
	require.NotNil(t, all[2].Result.Classification)

	latest, err := store.List(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(2), latest[0].Sequence)

	ttl := mr.TTL(keyPrefix + "conv-1")
	assert.Equal(t, DefaultTTL, ttl)
}

func TestStore_TrimsToMax(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, 2, time.Hour)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Append(ctx, "conv-1", testRecord(i, "x")))
	}
	got, err := store.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].Sequence)
	assert.Equal(t, int64(5), got[1].Sequence)
}

func TestStore_UnscopedRecords(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, 10, time.Hour)

	rec := testRecord(1, "hi")
	rec.ConversationID = ""
	require.NoError(t, store.Save(context.Background(), rec))

	got, err := store.List(context.Background(), unscopedConversation, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_EmptyConversation(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, 10, time.Hour)

	got, err := store.List(context.Background(), "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, store.Append(context.Background(), "", testRecord(1, "x")))
}

func TestStore_NilIsNoop(t *testing.T) {
	store := NewStore(nil, 10, time.Hour)
	assert.Nil(t, store)
	assert.NoError(t, store.Save(context.Background(), testRecord(1, "x")))
	got, err := store.List(context.Background(), "conv-1", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, 10, time.Hour)
	mr.Close()

	err := store.Append(context.Background(), "conv-1", testRecord(1, "x"))
	assert.Error(t, err)
}
