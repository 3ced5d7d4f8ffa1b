// Package retention prunes old pipeline data. Ledger rows are never touched;
// only terminal raw events age out, and dead jobs expire through their Redis
// TTL.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
)

// Service deletes terminal raw events past the configured retention window.
type Service struct {
	rawRepo   repository.RawEventRepository
	anomalies repository.AnomalyRepository
}

// NewService wires the retention sweep.
func NewService(rawRepo repository.RawEventRepository, anomalies repository.AnomalyRepository) *Service {
	return &Service{rawRepo: rawRepo, anomalies: anomalies}
}

// Run removes terminal raw events older than the retention window. Raw events
// referenced by an open anomaly are kept so the evidence stays inspectable
// until the anomaly is resolved.
func (s *Service) Run(ctx context.Context) error {
	retentionDays := models.GetAppSettings().GetRetentionDays()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	keepIDs, err := s.anomalies.OpenRawEventIDs()
	if err != nil {
		return fmt.Errorf("failed to list anomaly-referenced raw events: %w", err)
	}

	deleted, err := s.rawRepo.DeleteTerminalOlderThan(cutoff, keepIDs)
	if err != nil {
		return fmt.Errorf("failed to prune raw events: %w", err)
	}

	if deleted > 0 {
		log.Infof("[Retention] Pruned %d raw events older than %d days (%d kept for open anomalies)",
			deleted, retentionDays, len(keepIDs))
	}
	return nil
}
