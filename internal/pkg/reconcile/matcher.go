// Package reconcile pairs gateway payout events with bank statement lines.
// Matching is read-only over both sides; the only artifact is a MatchResult.
package reconcile

import (
	"strings"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
)

// MatchConfig carries the operator-tunable knobs of the matcher.
type MatchConfig struct {
	// FeeToleranceCents is the maximum absolute amount difference accepted by
	// the fee-tolerance tier.
	FeeToleranceCents int64
	// ScoreThreshold is the minimum heuristic score that still counts as a
	// match in the fallback tier.
	ScoreThreshold int
}

// Match is a proposed payout/transaction pairing.
type Match struct {
	Transaction *models.BankTransaction
	Confidence  int
	Reason      string
}

const (
	confidenceExact     = 100
	confidenceTolerance = 90
)

// FindBestMatch picks the best bank transaction for a payout, or nil when no
// candidate clears any tier. Tiers are strictly ordered: an exact match always
// beats a tolerance match, which always beats a heuristic one.
func FindBestMatch(payout *models.PayoutEvent, candidates []models.BankTransaction, cfg MatchConfig) *Match {
	var exact, tolerance *models.BankTransaction

	for i := range candidates {
		tx := &candidates[i]
		if tx.Currency != payout.Currency {
			continue
		}

		amountDiff := absInt64(tx.AmountCents - payout.NetAmountCents)
		days := dateDiffDays(payout.PayoutDate, tx.BookedAt)

		if amountDiff == 0 && days <= 1 {
			if exact == nil || closerCandidate(payout, tx, exact) {
				exact = tx
			}
			continue
		}
		if amountDiff <= cfg.FeeToleranceCents && days <= 2 {
			if tolerance == nil || closerCandidate(payout, tx, tolerance) {
				tolerance = tx
			}
		}
	}

	if exact != nil {
		return &Match{Transaction: exact, Confidence: confidenceExact, Reason: models.MatchReasonExactAmountDate}
	}
	if tolerance != nil {
		return &Match{Transaction: tolerance, Confidence: confidenceTolerance, Reason: models.MatchReasonToleranceFees}
	}

	// Heuristic fallback: score every candidate, accept the best one that
	// clears the threshold.
	var best *models.BankTransaction
	bestScore := -1
	for i := range candidates {
		tx := &candidates[i]
		if tx.Currency != payout.Currency {
			continue
		}
		score := heuristicScore(payout, tx)
		if score < cfg.ScoreThreshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && closerCandidate(payout, tx, best)) {
			best = tx
			bestScore = score
		}
	}
	if best != nil {
		return &Match{Transaction: best, Confidence: bestScore, Reason: models.MatchReasonHeuristicScore}
	}
	return nil
}

// heuristicScore combines amount proximity, date proximity and a gateway
// keyword hit into a 0-100 score.
func heuristicScore(payout *models.PayoutEvent, tx *models.BankTransaction) int {
	score := 0

	amountDiff := absInt64(tx.AmountCents - payout.NetAmountCents)
	switch {
	case amountDiff < 500:
		score += 60
	case amountDiff < 2000:
		score += 40
	default:
		score += 20
	}

	days := dateDiffDays(payout.PayoutDate, tx.BookedAt)
	switch {
	case days <= 1:
		score += 30
	case days <= 3:
		score += 15
	case days <= 7:
		score += 5
	}

	if strings.Contains(strings.ToLower(tx.Description), strings.ToLower(payout.Provider)) {
		score += 10
	}

	return score
}

// closerCandidate prefers the transaction booked nearer the payout date,
// breaking remaining ties by lowest ID so repeated runs pick the same row.
func closerCandidate(payout *models.PayoutEvent, a, b *models.BankTransaction) bool {
	da := dateDiffDays(payout.PayoutDate, a.BookedAt)
	db := dateDiffDays(payout.PayoutDate, b.BookedAt)
	if da != db {
		return da < db
	}
	return a.ID < b.ID
}

// dateDiffDays returns the absolute calendar-day distance between two dates.
func dateDiffDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := ad.Sub(bd)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
