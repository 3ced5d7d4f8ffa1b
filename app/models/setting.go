package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting row
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings holds operator-tunable runtime knobs, loaded from the settings
// table at startup and cached in memory.
type AppSettings struct {
	JobQueueWorkerCount     int `json:"job_queue_worker_count" validate:"min=1,max=64"`
	ReconcileIntervalMin    int `json:"reconcile_interval_min" validate:"min=1"`
	DetectorIntervalMin     int `json:"detector_interval_min" validate:"min=1"`
	RetentionDays           int `json:"retention_days" validate:"min=1"`
	FeeToleranceCents       int `json:"fee_tolerance_cents" validate:"min=0"`
	MatchScoreThreshold     int `json:"match_score_threshold" validate:"min=0,max=100"`
	PayoutUnmatchedGraceDay int `json:"payout_unmatched_grace_days" validate:"min=1"`
}

var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

func defaultAppSettings() *AppSettings {
	return &AppSettings{
		JobQueueWorkerCount:     5,
		ReconcileIntervalMin:    15,
		DetectorIntervalMin:     30,
		RetentionDays:           30,
		FeeToleranceCents:       500,
		MatchScoreThreshold:     50,
		PayoutUnmatchedGraceDay: 5,
	}
}

// GetAppSettings returns the current application settings (nil before LoadSettings).
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// LoadSettings loads settings from database into memory, applying defaults for
// anything unset.
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	appSettings = defaultAppSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "job_queue_worker_count":
			applyInt(setting.Value, &appSettings.JobQueueWorkerCount)
		case "reconcile_interval_min":
			applyInt(setting.Value, &appSettings.ReconcileIntervalMin)
		case "detector_interval_min":
			applyInt(setting.Value, &appSettings.DetectorIntervalMin)
		case "retention_days":
			applyInt(setting.Value, &appSettings.RetentionDays)
		case "fee_tolerance_cents":
			applyInt(setting.Value, &appSettings.FeeToleranceCents)
		case "match_score_threshold":
			applyInt(setting.Value, &appSettings.MatchScoreThreshold)
		case "payout_unmatched_grace_days":
			applyInt(setting.Value, &appSettings.PayoutUnmatchedGraceDay)
		}
	}

	return nil
}

// SaveSettings validates and persists settings, then swaps the cached copy.
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]int{
		"job_queue_worker_count":      settings.JobQueueWorkerCount,
		"reconcile_interval_min":      settings.ReconcileIntervalMin,
		"detector_interval_min":       settings.DetectorIntervalMin,
		"retention_days":              settings.RetentionDays,
		"fee_tolerance_cents":         settings.FeeToleranceCents,
		"match_score_threshold":       settings.MatchScoreThreshold,
		"payout_unmatched_grace_days": settings.PayoutUnmatchedGraceDay,
	}

	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: strconv.Itoa(value),
					Type:  "integer",
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = strconv.Itoa(value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	appSettings = settings
	return nil
}

func applyInt(raw string, dst *int) {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		*dst = v
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	v := validator.New()
	return v.Struct(s)
}

// GetJobQueueWorkerCount returns the configured worker count.
func (s *AppSettings) GetJobQueueWorkerCount() int {
	if s == nil || s.JobQueueWorkerCount <= 0 {
		return 5
	}
	return s.JobQueueWorkerCount
}

// GetReconcileInterval returns the reconciliation sweep interval in minutes.
func (s *AppSettings) GetReconcileInterval() int {
	if s == nil || s.ReconcileIntervalMin <= 0 {
		return 15
	}
	return s.ReconcileIntervalMin
}

// GetDetectorInterval returns the detector sweep interval in minutes.
func (s *AppSettings) GetDetectorInterval() int {
	if s == nil || s.DetectorIntervalMin <= 0 {
		return 30
	}
	return s.DetectorIntervalMin
}

// GetRetentionDays returns the retention window for terminal jobs and raw events.
func (s *AppSettings) GetRetentionDays() int {
	if s == nil || s.RetentionDays <= 0 {
		return 30
	}
	return s.RetentionDays
}

// GetFeeToleranceCents returns the matching fee-variance tolerance.
func (s *AppSettings) GetFeeToleranceCents() int {
	if s == nil || s.FeeToleranceCents < 0 {
		return 500
	}
	return s.FeeToleranceCents
}

// GetMatchScoreThreshold returns the minimum fallback score accepted as a match.
func (s *AppSettings) GetMatchScoreThreshold() int {
	if s == nil || s.MatchScoreThreshold <= 0 {
		return 50
	}
	return s.MatchScoreThreshold
}

// GetPayoutUnmatchedGraceDays returns how long a payout may stay unmatched
// before the missing-bank-credit detector flags it.
func (s *AppSettings) GetPayoutUnmatchedGraceDays() int {
	if s == nil || s.PayoutUnmatchedGraceDay <= 0 {
		return 5
	}
	return s.PayoutUnmatchedGraceDay
}
