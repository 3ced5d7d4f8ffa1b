// Package detectors scans the ledger for inconsistencies and persists them as
// anomalies. Detectors only ever report; resolving an anomaly is an operator
// action.
package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
)

// Detector finds one class of inconsistency within a single organization.
type Detector interface {
	Name() string
	Detect(ctx context.Context, orgID uint) ([]models.Anomaly, error)
}

// OrphanPaymentDetector flags paid payments whose order is missing from the
// ledger.
type OrphanPaymentDetector struct {
	ledger repository.LedgerRepository
}

func NewOrphanPaymentDetector(ledger repository.LedgerRepository) *OrphanPaymentDetector {
	return &OrphanPaymentDetector{ledger: ledger}
}

func (d *OrphanPaymentDetector) Name() string {
	return models.AnomalyTypeOrphanPayment
}

func (d *OrphanPaymentDetector) Detect(ctx context.Context, orgID uint) ([]models.Anomaly, error) {
	payments, err := d.ledger.ListPaidPaymentsWithoutOrder(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan payments: %w", err)
	}

	anomalies := make([]models.Anomaly, 0, len(payments))
	for _, p := range payments {
		details, _ := json.Marshal(map[string]interface{}{
			"provider":     p.Provider,
			"external_id":  p.ExternalID,
			"amount_cents": p.AmountCents,
			"currency":     p.Currency,
		})
		anomalies = append(anomalies, models.Anomaly{
			OrgID:       orgID,
			AnomalyType: models.AnomalyTypeOrphanPayment,
			EntityType:  "payment",
			EntityID:    p.ID,
			Severity:    models.AnomalySeverityHigh,
			Description: fmt.Sprintf("Paid payment %s/%s has no order", p.Provider, p.ExternalID),
			Details:     string(details),
		})
	}
	return anomalies, nil
}

// MissingBankCreditDetector flags payouts that stayed unmatched past the
// configured grace period. The gateway says money moved; the bank never
// confirmed it.
type MissingBankCreditDetector struct {
	recon repository.ReconRepository
}

func NewMissingBankCreditDetector(recon repository.ReconRepository) *MissingBankCreditDetector {
	return &MissingBankCreditDetector{recon: recon}
}

func (d *MissingBankCreditDetector) Name() string {
	return models.AnomalyTypeMissingBankCredit
}

func (d *MissingBankCreditDetector) Detect(ctx context.Context, orgID uint) ([]models.Anomaly, error) {
	graceDays := models.GetAppSettings().GetPayoutUnmatchedGraceDays()
	cutoff := time.Now().AddDate(0, 0, -graceDays)

	payouts, err := d.recon.ListUnmatchedPayoutsOlderThan(orgID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue payouts: %w", err)
	}

	anomalies := make([]models.Anomaly, 0, len(payouts))
	for _, p := range payouts {
		details, _ := json.Marshal(map[string]interface{}{
			"provider":         p.Provider,
			"external_id":      p.ExternalID,
			"net_amount_cents": p.NetAmountCents,
			"currency":         p.Currency,
			"payout_date":      p.PayoutDate.Format("2006-01-02"),
		})
		anomalies = append(anomalies, models.Anomaly{
			OrgID:       orgID,
			AnomalyType: models.AnomalyTypeMissingBankCredit,
			EntityType:  "payout_event",
			EntityID:    p.ID,
			Severity:    models.AnomalySeverityHigh,
			Description: fmt.Sprintf("Payout %s/%s unmatched for over %d days", p.Provider, p.ExternalID, graceDays),
			Details:     string(details),
		})
	}
	return anomalies, nil
}

// stalledRawEventAge is how long a raw event may sit in received before it
// counts as stuck in the pipeline.
const stalledRawEventAge = time.Hour

// StalledRawEventDetector flags raw events that were accepted but never
// reached a terminal status, usually because their jobs died.
type StalledRawEventDetector struct {
	rawRepo repository.RawEventRepository
}

func NewStalledRawEventDetector(rawRepo repository.RawEventRepository) *StalledRawEventDetector {
	return &StalledRawEventDetector{rawRepo: rawRepo}
}

func (d *StalledRawEventDetector) Name() string {
	return models.AnomalyTypeStalledRawEvent
}

func (d *StalledRawEventDetector) Detect(ctx context.Context, orgID uint) ([]models.Anomaly, error) {
	events, err := d.rawRepo.ListByStatus(models.RawEventStatusReceived, 0, 500)
	if err != nil {
		return nil, fmt.Errorf("failed to list received raw events: %w", err)
	}

	cutoff := time.Now().Add(-stalledRawEventAge)
	var anomalies []models.Anomaly
	for _, e := range events {
		if e.OrgID != orgID || e.ReceivedAt.After(cutoff) {
			continue
		}
		details, _ := json.Marshal(map[string]interface{}{
			"provider":    e.Provider,
			"event_type":  e.EventType,
			"received_at": e.ReceivedAt,
		})
		anomalies = append(anomalies, models.Anomaly{
			OrgID:       orgID,
			AnomalyType: models.AnomalyTypeStalledRawEvent,
			EntityType:  "raw_event",
			EntityID:    e.ID,
			Severity:    models.AnomalySeverityMedium,
			Description: fmt.Sprintf("Raw event %d (%s %s) stuck in received", e.ID, e.Provider, e.EventType),
			Details:     string(details),
		})
	}
	return anomalies, nil
}
