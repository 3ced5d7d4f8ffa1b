package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type rawEventRepository struct {
	db *gorm.DB
}

// NewRawEventRepository creates a new raw event repository instance
func NewRawEventRepository(db *gorm.DB) RawEventRepository {
	return &rawEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless a row with the same idempotency
// key already exists. Returns (false, existing) on a duplicate delivery; the
// unique constraint is the sole dedup mechanism, no application-level locking.
func (r *rawEventRepository) CreateIfNotExists(event *models.RawEvent) (bool, *models.RawEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.RawEvent
	if err := r.db.Where("idempotency_key = ?", event.IdempotencyKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *rawEventRepository) GetByID(id uint) (*models.RawEvent, error) {
	var event models.RawEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *rawEventRepository) MarkNormalized(id uint) error {
	return r.setTerminalStatus(id, models.RawEventStatusNormalized, "")
}

func (r *rawEventRepository) MarkIgnored(id uint) error {
	return r.setTerminalStatus(id, models.RawEventStatusIgnored, "")
}

func (r *rawEventRepository) MarkFailed(id uint, processingError string) error {
	return r.setTerminalStatus(id, models.RawEventStatusFailed, processingError)
}

func (r *rawEventRepository) setTerminalStatus(id uint, status, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.RawEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           status,
		"processed_at":     &now,
		"processing_error": processingError,
	}).Error
}

func (r *rawEventRepository) ListByStatus(status string, offset, limit int) ([]models.RawEvent, error) {
	var events []models.RawEvent
	err := r.db.Where("status = ?", status).
		Order("received_at DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *rawEventRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.RawEvent{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *rawEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.RawEvent{}).Count(&count).Error
	return count, err
}

// DeleteTerminalOlderThan removes terminal raw events received before cutoff,
// skipping any IDs still referenced by an open anomaly.
func (r *rawEventRepository) DeleteTerminalOlderThan(cutoff time.Time, keepIDs []uint) (int64, error) {
	q := r.db.Where("received_at < ?", cutoff).
		Where("status IN ?", []string{
			models.RawEventStatusNormalized,
			models.RawEventStatusIgnored,
			models.RawEventStatusFailed,
		})
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	tx := q.Delete(&models.RawEvent{})
	return tx.RowsAffected, tx.Error
}
