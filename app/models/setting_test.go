package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppSettingsGettersFallBackToDefaults(t *testing.T) {
	var s *AppSettings

	assert.Equal(t, 5, s.GetJobQueueWorkerCount())
	assert.Equal(t, 15, s.GetReconcileInterval())
	assert.Equal(t, 30, s.GetDetectorInterval())
	assert.Equal(t, 30, s.GetRetentionDays())
	assert.Equal(t, 500, s.GetFeeToleranceCents())
	assert.Equal(t, 50, s.GetMatchScoreThreshold())
	assert.Equal(t, 5, s.GetPayoutUnmatchedGraceDays())
}

func TestAppSettingsGettersUseConfiguredValues(t *testing.T) {
	s := &AppSettings{
		JobQueueWorkerCount:     10,
		ReconcileIntervalMin:    5,
		DetectorIntervalMin:     10,
		RetentionDays:           90,
		FeeToleranceCents:       250,
		MatchScoreThreshold:     70,
		PayoutUnmatchedGraceDay: 3,
	}

	assert.Equal(t, 10, s.GetJobQueueWorkerCount())
	assert.Equal(t, 5, s.GetReconcileInterval())
	assert.Equal(t, 250, s.GetFeeToleranceCents())
	assert.Equal(t, 70, s.GetMatchScoreThreshold())
	assert.Equal(t, 3, s.GetPayoutUnmatchedGraceDays())
}

func TestAppSettingsValidate(t *testing.T) {
	good := defaultAppSettings()
	assert.NoError(t, good.Validate())

	bad := defaultAppSettings()
	bad.JobQueueWorkerCount = 0
	assert.Error(t, bad.Validate())

	bad = defaultAppSettings()
	bad.MatchScoreThreshold = 150
	assert.Error(t, bad.Validate())
}
