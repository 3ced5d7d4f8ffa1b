package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledgerlink/internal/pkg/cache"
)

// requireRedis skips the test when no Redis is reachable, so the suite still
// runs on machines without the docker stack up.
func requireRedis(t *testing.T) {
	t.Helper()
	if err := cache.GetClient().Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
}

func cleanupJob(t *testing.T, jobID string) {
	t.Helper()
	ctx := context.Background()
	client := cache.GetClient()
	client.Del(ctx, JobKeyPrefix+jobID)
	client.LRem(ctx, JobQueueKey, 0, jobID)
	client.LRem(ctx, JobRunningKey, 0, jobID)
	client.LRem(ctx, JobDeadKey, 0, jobID)
	client.ZRem(ctx, JobScheduledKey, jobID)
}

func TestEnqueueAndGetJob(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	queue := NewQueue(1)

	payload := NormalizeJobPayload{RawEventID: 123, Provider: "kiwify"}
	job, err := queue.EnqueueJob(1, JobTypeNormalize, payload.ToMap())
	require.NoError(t, err)
	defer cleanupJob(t, job.ID)

	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, 0, job.Attempts)

	loaded, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, JobTypeNormalize, loaded.Type)

	decoded, err := NormalizeJobPayloadFromMap(loaded.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(123), decoded.RawEventID)
}

func TestDequeueClaimsIntoRunningList(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	queue := NewQueue(1)

	job, err := queue.EnqueueJob(1, JobTypeApply, ApplyJobPayload{CanonicalEventID: 5}.ToMap())
	require.NoError(t, err)
	defer cleanupJob(t, job.ID)

	claimed, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)

	// The claim must be exclusive: the ID moved from ready to running.
	ids, err := cache.GetClient().LRange(ctx, JobRunningKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Contains(t, ids, job.ID)
}

func TestRequeueRejectsNonDeadJobs(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	queue := NewQueue(1)

	job, err := queue.EnqueueJob(1, JobTypeNormalize, NormalizeJobPayload{RawEventID: 1}.ToMap())
	require.NoError(t, err)
	defer cleanupJob(t, job.ID)

	_, err = queue.RequeueDeadJob(ctx, job.ID)
	assert.Error(t, err)
}

func TestRequeueDeadJobResetsAttempts(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	queue := NewQueue(1)

	job, err := queue.EnqueueJob(1, JobTypeNormalize, NormalizeJobPayload{RawEventID: 2}.ToMap())
	require.NoError(t, err)
	defer cleanupJob(t, job.ID)

	// Drive the job to dead the way processJob would.
	for job.IsRetryable() {
		job.MarkAsRunning()
		job.MarkAsFailed("forced")
	}
	job.MarkAsDead()
	queue.updateJob(ctx, job, DeadJobTTL)
	require.NoError(t, cache.GetClient().LRem(ctx, JobQueueKey, 0, job.ID).Err())
	require.NoError(t, cache.GetClient().RPush(ctx, JobDeadKey, job.ID).Err())

	requeued, err := queue.RequeueDeadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.Attempts)
	assert.Empty(t, requeued.LastError)
	assert.True(t, requeued.AvailableAt.Before(time.Now().Add(time.Second)))
}
