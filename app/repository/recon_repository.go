package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type reconRepository struct {
	db *gorm.DB
}

// NewReconRepository creates a new reconciliation repository instance
func NewReconRepository(db *gorm.DB) ReconRepository {
	return &reconRepository{db: db}
}

func (r *reconRepository) ListUnmatchedPayouts(orgID uint, limit int) ([]models.PayoutEvent, error) {
	var payouts []models.PayoutEvent
	err := r.db.
		Where("payout_events.org_id = ?", orgID).
		Where("NOT EXISTS (SELECT 1 FROM match_results WHERE match_results.payout_event_id = payout_events.id)").
		Order("payout_events.payout_date ASC").
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

// ListCandidateTransactions returns bank transactions booked within windowDays
// of the given date. Matching reads these rows; it never mutates them.
func (r *reconRepository) ListCandidateTransactions(orgID uint, around time.Time, windowDays int) ([]models.BankTransaction, error) {
	from := around.AddDate(0, 0, -windowDays)
	to := around.AddDate(0, 0, windowDays)
	var txs []models.BankTransaction
	err := r.db.
		Where("org_id = ? AND booked_at BETWEEN ? AND ?", orgID, from, to).
		Order("booked_at ASC").
		Find(&txs).Error
	return txs, err
}

func (r *reconRepository) MatchedTransactionIDs(orgID uint) (map[uint]struct{}, error) {
	var ids []uint
	err := r.db.Model(&models.MatchResult{}).
		Where("org_id = ?", orgID).
		Pluck("bank_transaction_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CreateMatchResult writes the match unless the payout already has one. The
// unique index on payout_event_id keeps concurrent engine runs from
// double-matching.
func (r *reconRepository) CreateMatchResult(result *models.MatchResult) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payout_event_id"}},
		DoNothing: true,
	}).Create(result)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *reconRepository) InsertBankTransactionIfNew(bankTx *models.BankTransaction) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account"},
			{Name: "line_hash"},
		},
		DoNothing: true,
	}).Create(bankTx)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *reconRepository) ListUnmatchedPayoutsOlderThan(orgID uint, cutoff time.Time) ([]models.PayoutEvent, error) {
	var payouts []models.PayoutEvent
	err := r.db.
		Where("payout_events.org_id = ? AND payout_events.payout_date < ?", orgID, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM match_results WHERE match_results.payout_event_id = payout_events.id)").
		Find(&payouts).Error
	return payouts, err
}

func (r *reconRepository) ConfidenceDistribution(orgID uint) ([]models.ConfidenceBucket, error) {
	var buckets []models.ConfidenceBucket
	err := r.db.Model(&models.MatchResult{}).
		Select("reason, COUNT(*) as count").
		Where("org_id = ?", orgID).
		Group("reason").
		Scan(&buckets).Error
	return buckets, err
}
