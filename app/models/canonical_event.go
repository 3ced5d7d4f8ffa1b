package models

import "time"

const (
	DomainTypeOrder   = "order"
	DomainTypePayment = "payment"
	DomainTypeRefund  = "refund"
	DomainTypePayout  = "payout"
)

// CanonicalEvent is the provider-agnostic representation produced by
// normalization. Rows are immutable; `(provider, normalized_hash)` is unique
// so re-normalizing the same raw event can never double-apply.
type CanonicalEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RawEventID     uint      `gorm:"not null;index" json:"raw_event_id"`
	OrgID          uint      `gorm:"not null;index" json:"org_id"`
	ProjectID      *uint     `gorm:"index" json:"project_id,omitempty"`
	Provider       string    `gorm:"type:varchar(40);not null;uniqueIndex:ux_canonical_events_provider_hash,priority:1" json:"provider"`
	DomainType     string    `gorm:"type:varchar(20);not null;index" json:"domain_type"`
	Data           string    `gorm:"type:longtext;not null" json:"data"`
	ExternalRef    string    `gorm:"type:varchar(191);not null;index" json:"external_ref"`
	OccurredAt     time.Time `gorm:"not null" json:"occurred_at"`
	NormalizedHash string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_canonical_events_provider_hash,priority:2" json:"normalized_hash"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
