package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type canonicalEventRepository struct {
	db *gorm.DB
}

// NewCanonicalEventRepository creates a new canonical event repository instance
func NewCanonicalEventRepository(db *gorm.DB) CanonicalEventRepository {
	return &canonicalEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless `(provider, normalized_hash)`
// already exists, which makes re-normalization of a raw event a no-op.
func (r *canonicalEventRepository) CreateIfNotExists(event *models.CanonicalEvent) (bool, *models.CanonicalEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "normalized_hash"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.CanonicalEvent
	if err := r.db.Where("provider = ? AND normalized_hash = ?", event.Provider, event.NormalizedHash).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *canonicalEventRepository) GetByID(id uint) (*models.CanonicalEvent, error) {
	var event models.CanonicalEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *canonicalEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.CanonicalEvent{}).Count(&count).Error
	return count, err
}
