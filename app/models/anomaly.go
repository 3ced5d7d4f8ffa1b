package models

import "time"

const (
	AnomalyStatusOpen     = "open"
	AnomalyStatusResolved = "resolved"

	AnomalySeverityLow    = "low"
	AnomalySeverityMedium = "medium"
	AnomalySeverityHigh   = "high"

	AnomalyTypeOrphanPayment     = "orphan_payment"
	AnomalyTypeMissingBankCredit = "missing_bank_credit"
	AnomalyTypeStalledRawEvent   = "stalled_raw_event"
)

// Anomaly is a persisted inconsistency found by a detector. At most one open
// anomaly may exist per `(org_id, anomaly_type, entity_id)`; detectors
// check-then-insert against that constraint so a persisting condition does not
// alert on every scheduled run.
type Anomaly struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrgID       uint       `gorm:"not null;index:ix_anomalies_dedupe,priority:1" json:"org_id"`
	ProjectID   *uint      `gorm:"index" json:"project_id,omitempty"`
	AnomalyType string     `gorm:"type:varchar(40);not null;index:ix_anomalies_dedupe,priority:2" json:"anomaly_type"`
	EntityType  string     `gorm:"type:varchar(40);not null" json:"entity_type"`
	EntityID    uint       `gorm:"not null;index:ix_anomalies_dedupe,priority:3" json:"entity_id"`
	Severity    string     `gorm:"type:varchar(10);not null;default:'medium'" json:"severity"`
	Status      string     `gorm:"type:varchar(10);not null;default:'open';index:ix_anomalies_dedupe,priority:4" json:"status"`
	Description string     `gorm:"type:varchar(255);not null" json:"description"`
	Details     string     `gorm:"type:longtext" json:"details"`
	DetectedAt  time.Time  `gorm:"autoCreateTime;index" json:"detected_at"`
	ResolvedAt  *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
}

// IsOpen reports whether the anomaly still needs review.
func (a *Anomaly) IsOpen() bool {
	return a.Status == AnomalyStatusOpen
}
