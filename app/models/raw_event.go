package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	RawEventStatusReceived   = "received"
	RawEventStatusNormalized = "normalized"
	RawEventStatusIgnored    = "ignored"
	RawEventStatusFailed     = "failed"
)

// RawEvent stores an inbound webhook body exactly as delivered, keyed by a
// content hash so duplicate deliveries collapse onto one row.
type RawEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrgID           uint       `gorm:"not null;index" json:"org_id"`
	ProjectID       *uint      `gorm:"index" json:"project_id,omitempty"`
	Provider        string     `gorm:"type:varchar(40);not null;index" json:"provider"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         string     `gorm:"type:longtext;not null" json:"payload"`
	Headers         string     `gorm:"type:text" json:"headers"`
	IdempotencyKey  string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_raw_events_idempotency_key" json:"idempotency_key"`
	Status          string     `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ReceivedAt      time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ComputeIdempotencyKey derives the dedup key for a delivery from its content.
// The same provider, event type and body always hash to the same key.
func ComputeIdempotencyKey(provider, eventType string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// IsTerminal reports whether the pipeline is done with this event.
func (r *RawEvent) IsTerminal() bool {
	return r.Status == RawEventStatusNormalized ||
		r.Status == RawEventStatusIgnored ||
		r.Status == RawEventStatusFailed
}
