package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PayoutEvent is a gateway-reported settlement transfer. The matching engine
// reads these rows but never mutates them.
type PayoutEvent struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrgID            uint      `gorm:"not null;uniqueIndex:ux_payout_events_identity,priority:1" json:"org_id"`
	Provider         string    `gorm:"type:varchar(40);not null;uniqueIndex:ux_payout_events_identity,priority:2" json:"provider"`
	ExternalID       string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payout_events_identity,priority:3" json:"external_id"`
	GrossAmountCents int64     `gorm:"not null;default:0" json:"gross_amount_cents"`
	FeeCents         int64     `gorm:"not null;default:0" json:"fee_cents"`
	NetAmountCents   int64     `gorm:"not null;default:0" json:"net_amount_cents"`
	Currency         string    `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	PayoutDate       time.Time `gorm:"type:date;not null;index" json:"payout_date"`
	Description      string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BankTransaction is a bank-reported cash movement, imported from statements.
// Never mutated by matching.
type BankTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrgID       uint      `gorm:"not null;index" json:"org_id"`
	Account     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_bank_transactions_line,priority:1" json:"account"`
	LineHash    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_bank_transactions_line,priority:2" json:"line_hash"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	BookedAt    time.Time `gorm:"type:date;not null;index" json:"booked_at"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ComputeStatementLineHash keys a statement line by its content so re-importing
// the same file is a no-op.
func ComputeStatementLineHash(account string, bookedAt time.Time, amountCents int64, description string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", account, bookedAt.Format("2006-01-02"), amountCents, description)))
	return hex.EncodeToString(h[:])
}

const (
	MatchReasonExactAmountDate = "exact_amount_date"
	MatchReasonToleranceFees   = "tolerance_fees"
	MatchReasonHeuristicScore  = "heuristic_score"
)

// MatchResult pairs a payout with a bank transaction. It is the only artifact
// the matching engine writes; one result per payout.
type MatchResult struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrgID             uint      `gorm:"not null;index" json:"org_id"`
	PayoutEventID     uint      `gorm:"not null;uniqueIndex:ux_match_results_payout" json:"payout_event_id"`
	BankTransactionID uint      `gorm:"not null;index" json:"bank_transaction_id"`
	Confidence        int       `gorm:"not null" json:"confidence"`
	Reason            string    `gorm:"type:varchar(40);not null" json:"reason"`
	MatchedAt         time.Time `gorm:"autoCreateTime" json:"matched_at"`
}
