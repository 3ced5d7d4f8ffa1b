package detectors

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics"
)

// Runner executes all registered detectors across all organizations and
// persists their findings with open-anomaly dedup.
type Runner struct {
	ledger    repository.LedgerRepository
	anomalies repository.AnomalyRepository
	detectors []Detector
}

// NewRunner wires a detector sweep.
func NewRunner(ledger repository.LedgerRepository, anomalies repository.AnomalyRepository, detectors ...Detector) *Runner {
	return &Runner{ledger: ledger, anomalies: anomalies, detectors: detectors}
}

// Run executes every detector for every organization. A detection that
// already has an open anomaly for the same entity is skipped, so a condition
// that persists across sweeps produces exactly one open anomaly.
func (r *Runner) Run(ctx context.Context) error {
	orgIDs, err := r.ledger.ListOrgIDs()
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	created := 0
	for _, orgID := range orgIDs {
		for _, d := range r.detectors {
			if err := ctx.Err(); err != nil {
				return err
			}
			findings, err := d.Detect(ctx, orgID)
			if err != nil {
				log.Errorf("[Detectors] %s failed for org %d: %v", d.Name(), orgID, err)
				continue
			}
			for i := range findings {
				anomaly := findings[i]
				open, err := r.anomalies.HasOpen(anomaly.OrgID, anomaly.AnomalyType, anomaly.EntityID)
				if err != nil {
					log.Errorf("[Detectors] Dedup check failed: %v", err)
					continue
				}
				if open {
					continue
				}
				anomaly.Status = models.AnomalyStatusOpen
				if err := r.anomalies.Create(&anomaly); err != nil {
					log.Errorf("[Detectors] Failed to store anomaly: %v", err)
					continue
				}
				created++
			}
		}
	}

	r.refreshOpenGauge()
	if created > 0 {
		log.Infof("[Detectors] Sweep finished: %d new anomalies", created)
	}
	return nil
}

func (r *Runner) refreshOpenGauge() {
	counts, err := r.anomalies.OpenCounts()
	if err != nil {
		log.Errorf("[Detectors] Failed to refresh open anomaly counts: %v", err)
		return
	}
	metrics.AnomaliesOpen.Reset()
	for _, c := range counts {
		metrics.AnomaliesOpen.WithLabelValues(c.AnomalyType).Set(float64(c.Count))
	}
}
