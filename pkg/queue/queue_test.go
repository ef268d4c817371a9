package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestQueue connects to the Redis named by REDIS_TEST_ADDR, using a
// scratch database that is flushed before and after the test.
func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return NewQueue(client, zap.NewNop()), client
}

func TestEnqueueExport_RoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	org := uuid.New()

	id, err := q.EnqueueExport(ctx, ExportPayload{OrganizationID: org, Table: "units"})
	require.NoError(t, err)

	st, err := q.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ExportPending, st.Status)
	require.Equal(t, org, st.OrganizationID)

	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	job, err := q.Dequeue(dctx)
	require.NoError(t, err)
	require.Equal(t, id, job.ID)
	require.Equal(t, JobTypeExport, job.Type)

	_, err = q.Status(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrStatusNotFound)
}

func TestRetry_MovesToDLQ(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()
	job := &Job{ID: uuid.NewString(), Type: JobTypeExport}

	for i := 1; i < MaxRetries; i++ {
		dead, err := q.Retry(ctx, job)
		require.NoError(t, err)
		require.False(t, dead)
	}
	dead, err := q.Retry(ctx, job)
	require.NoError(t, err)
	require.True(t, dead)

	require.EqualValues(t, MaxRetries-1, client.LLen(ctx, QueueExports).Val())
	require.EqualValues(t, 1, client.LLen(ctx, QueueDLQ).Val())
}
