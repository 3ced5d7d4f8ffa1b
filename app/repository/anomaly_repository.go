package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type anomalyRepository struct {
	db *gorm.DB
}

// NewAnomalyRepository creates a new anomaly repository instance
func NewAnomalyRepository(db *gorm.DB) AnomalyRepository {
	return &anomalyRepository{db: db}
}

// HasOpen reports whether an open anomaly already exists for the rule/entity
// pair. Detectors check this before inserting so a persisting condition does
// not alert on every run.
func (r *anomalyRepository) HasOpen(orgID uint, anomalyType string, entityID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Anomaly{}).
		Where("org_id = ? AND anomaly_type = ? AND entity_id = ? AND status = ?",
			orgID, anomalyType, entityID, models.AnomalyStatusOpen).
		Count(&count).Error
	return count > 0, err
}

func (r *anomalyRepository) Create(anomaly *models.Anomaly) error {
	return r.db.Create(anomaly).Error
}

// Resolve transitions an anomaly open -> resolved. Only operators trigger
// this; detectors never resolve.
func (r *anomalyRepository) Resolve(id uint) error {
	now := time.Now()
	return r.db.Model(&models.Anomaly{}).
		Where("id = ? AND status = ?", id, models.AnomalyStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.AnomalyStatusResolved,
			"resolved_at": &now,
		}).Error
}

func (r *anomalyRepository) GetByID(id uint) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	if err := r.db.First(&anomaly, id).Error; err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (r *anomalyRepository) ListByStatus(status string, offset, limit int) ([]models.Anomaly, error) {
	var anomalies []models.Anomaly
	err := r.db.Where("status = ?", status).
		Order("detected_at DESC").
		Offset(offset).Limit(limit).
		Find(&anomalies).Error
	return anomalies, err
}

func (r *anomalyRepository) OpenCounts() ([]models.AnomalyCount, error) {
	var counts []models.AnomalyCount
	err := r.db.Model(&models.Anomaly{}).
		Select("anomaly_type, COUNT(*) as count").
		Where("status = ?", models.AnomalyStatusOpen).
		Group("anomaly_type").
		Scan(&counts).Error
	return counts, err
}

// OpenRawEventIDs lists raw events referenced by open anomalies; retention
// must not delete these.
func (r *anomalyRepository) OpenRawEventIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Anomaly{}).
		Where("status = ? AND entity_type = ?", models.AnomalyStatusOpen, "raw_event").
		Pluck("entity_id", &ids).Error
	return ids, err
}
