package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob() *Job {
	now := time.Now()
	return &Job{
		ID:          "test-job",
		OrgID:       1,
		Type:        JobTypeNormalize,
		Status:      JobStatusQueued,
		Payload:     NormalizeJobPayload{RawEventID: 7, Provider: "kiwify"}.ToMap(),
		MaxAttempts: DefaultMaxAttempts,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestJobRetryFlowEndsDeadAtMaxAttempts(t *testing.T) {
	job := newTestJob()

	for attempt := 1; attempt <= job.MaxAttempts; attempt++ {
		job.MarkAsRunning()
		require.NotNil(t, job.StartedAt)

		job.MarkAsFailed("boom")
		assert.Equal(t, attempt, job.Attempts)
		assert.Nil(t, job.StartedAt)

		if attempt < job.MaxAttempts {
			require.True(t, job.IsRetryable())
			job.MarkAsRetrying(time.Minute)
			assert.Equal(t, JobStatusQueued, job.Status)
			assert.True(t, job.AvailableAt.After(time.Now()))
		} else {
			require.False(t, job.IsRetryable())
			job.MarkAsDead()
		}
	}

	assert.Equal(t, JobStatusDead, job.Status)
	assert.Equal(t, job.MaxAttempts, job.Attempts)
	assert.Equal(t, "boom", job.LastError)
}

func TestJobMarkAsCompletedClearsError(t *testing.T) {
	job := newTestJob()
	job.MarkAsRunning()
	job.MarkAsFailed("transient")
	job.MarkAsRetrying(time.Second)
	job.MarkAsRunning()
	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.LastError)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, job.Attempts)
}

func TestJobResetForRequeue(t *testing.T) {
	job := newTestJob()
	for i := 0; i < job.MaxAttempts; i++ {
		job.MarkAsRunning()
		job.MarkAsFailed("dead-end")
	}
	job.MarkAsDead()

	job.ResetForRequeue()
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Empty(t, job.LastError)
	assert.Nil(t, job.StartedAt)
	assert.True(t, job.IsRetryable())
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	for attempts := 1; attempts <= 10; attempts++ {
		base := backoffBase << (attempts - 1)
		if base > backoffCap {
			base = backoffCap
		}
		delay := backoffDelay(attempts)
		assert.GreaterOrEqual(t, delay, base, "attempt %d", attempts)
		assert.LessOrEqual(t, delay, base+base/2, "attempt %d", attempts)
	}

	// Degenerate input clamps to the first attempt.
	delay := backoffDelay(0)
	assert.GreaterOrEqual(t, delay, backoffBase)
}

func TestNormalizeJobPayloadRoundTrip(t *testing.T) {
	payload := NormalizeJobPayload{RawEventID: 42, Provider: "stripe"}

	decoded, err := NormalizeJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload.RawEventID, decoded.RawEventID)
	assert.Equal(t, payload.Provider, decoded.Provider)
}

func TestApplyJobPayloadRoundTrip(t *testing.T) {
	payload := ApplyJobPayload{CanonicalEventID: 99}

	decoded, err := ApplyJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload.CanonicalEventID, decoded.CanonicalEventID)
}
