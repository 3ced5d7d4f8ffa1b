package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatementLineHash(t *testing.T) {
	bookedAt := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	hash := ComputeStatementLineHash("main", bookedAt, 97500, "TED KIWIFY")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, ComputeStatementLineHash("main", bookedAt, 97500, "TED KIWIFY"))

	// Time-of-day does not matter, only the calendar date.
	assert.Equal(t, hash, ComputeStatementLineHash("main", bookedAt.Add(14*time.Hour), 97500, "TED KIWIFY"))

	assert.NotEqual(t, hash, ComputeStatementLineHash("savings", bookedAt, 97500, "TED KIWIFY"))
	assert.NotEqual(t, hash, ComputeStatementLineHash("main", bookedAt.AddDate(0, 0, 1), 97500, "TED KIWIFY"))
	assert.NotEqual(t, hash, ComputeStatementLineHash("main", bookedAt, 97501, "TED KIWIFY"))
	assert.NotEqual(t, hash, ComputeStatementLineHash("main", bookedAt, 97500, "TED STRIPE"))
}
