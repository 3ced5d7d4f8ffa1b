package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics"
)

const (
	// candidateWindowDays bounds how far from the payout date a bank
	// transaction may be booked and still be considered.
	candidateWindowDays = 7

	payoutBatchSize = 500
)

// Engine runs full reconciliation sweeps over all organizations.
type Engine struct {
	ledger repository.LedgerRepository
	recon  repository.ReconRepository
}

// NewEngine wires a matching engine.
func NewEngine(ledger repository.LedgerRepository, recon repository.ReconRepository) *Engine {
	return &Engine{ledger: ledger, recon: recon}
}

// Run matches unmatched payouts against imported bank transactions for every
// organization. Safe to run concurrently with ingestion; the unique index on
// match_results keeps a payout from ever being matched twice.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.ReconcileRunDuration.Observe(time.Since(start).Seconds())
	}()

	orgIDs, err := e.ledger.ListOrgIDs()
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	cfg := currentConfig()
	total := 0
	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		matched, err := e.runOrg(orgID, cfg)
		if err != nil {
			log.Errorf("[Reconcile] Org %d sweep failed: %v", orgID, err)
			continue
		}
		total += matched
	}

	log.Infof("[Reconcile] Sweep finished: %d new matches across %d orgs in %s", total, len(orgIDs), time.Since(start))
	return nil
}

func (e *Engine) runOrg(orgID uint, cfg MatchConfig) (int, error) {
	payouts, err := e.recon.ListUnmatchedPayouts(orgID, payoutBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unmatched payouts: %w", err)
	}
	if len(payouts) == 0 {
		return 0, nil
	}

	claimed, err := e.recon.MatchedTransactionIDs(orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to list matched transactions: %w", err)
	}

	matched := 0
	for i := range payouts {
		payout := &payouts[i]

		candidates, err := e.recon.ListCandidateTransactions(orgID, payout.PayoutDate, candidateWindowDays)
		if err != nil {
			return matched, fmt.Errorf("failed to list candidates for payout %d: %w", payout.ID, err)
		}

		// A transaction already claimed by another payout is off the table,
		// within this sweep and across sweeps.
		available := candidates[:0]
		for _, tx := range candidates {
			if _, taken := claimed[tx.ID]; !taken {
				available = append(available, tx)
			}
		}

		match := FindBestMatch(payout, available, cfg)
		if match == nil {
			continue
		}

		created, err := e.recon.CreateMatchResult(&models.MatchResult{
			OrgID:             orgID,
			PayoutEventID:     payout.ID,
			BankTransactionID: match.Transaction.ID,
			Confidence:        match.Confidence,
			Reason:            match.Reason,
		})
		if err != nil {
			return matched, fmt.Errorf("failed to store match for payout %d: %w", payout.ID, err)
		}
		if !created {
			// Lost a race with a concurrent sweep; the payout is matched
			// either way.
			continue
		}

		claimed[match.Transaction.ID] = struct{}{}
		matched++
		metrics.MatchesCreated.WithLabelValues(match.Reason).Inc()
		log.Debugf("[Reconcile] Payout %d matched tx %d (%s, confidence %d)",
			payout.ID, match.Transaction.ID, match.Reason, match.Confidence)
	}

	return matched, nil
}

func currentConfig() MatchConfig {
	settings := models.GetAppSettings()
	return MatchConfig{
		FeeToleranceCents: int64(settings.GetFeeToleranceCents()),
		ScoreThreshold:    settings.GetMatchScoreThreshold(),
	}
}
