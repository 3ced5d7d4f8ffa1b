package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledgerlink/app/models"
)

var testConfig = MatchConfig{FeeToleranceCents: 500, ScoreThreshold: 50}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func payout(net int64, d int) *models.PayoutEvent {
	return &models.PayoutEvent{
		ID:             1,
		Provider:       "kiwify",
		NetAmountCents: net,
		Currency:       "BRL",
		PayoutDate:     day(d),
	}
}

func tx(id uint, amount int64, d int, description string) models.BankTransaction {
	return models.BankTransaction{
		ID:          id,
		Account:     "main",
		AmountCents: amount,
		Currency:    "BRL",
		BookedAt:    day(d),
		Description: description,
	}
}

func TestFindBestMatchExactTier(t *testing.T) {
	candidates := []models.BankTransaction{
		tx(1, 97500, 11, "TED KIWIFY"),
		tx(2, 97500, 15, "TED KIWIFY"),
	}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	require.NotNil(t, match)
	assert.Equal(t, uint(1), match.Transaction.ID)
	assert.Equal(t, 100, match.Confidence)
	assert.Equal(t, models.MatchReasonExactAmountDate, match.Reason)
}

func TestFindBestMatchExactBeatsTolerance(t *testing.T) {
	candidates := []models.BankTransaction{
		tx(1, 97400, 10, ""), // within fee tolerance, same day
		tx(2, 97500, 11, ""), // exact amount, one day off
	}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	require.NotNil(t, match)
	assert.Equal(t, uint(2), match.Transaction.ID)
	assert.Equal(t, models.MatchReasonExactAmountDate, match.Reason)
}

func TestFindBestMatchToleranceBoundary(t *testing.T) {
	// Exactly at the tolerance is accepted.
	within := []models.BankTransaction{tx(1, 97000, 11, "")}
	match := FindBestMatch(payout(97500, 10), within, testConfig)
	require.NotNil(t, match)
	assert.Equal(t, 90, match.Confidence)
	assert.Equal(t, models.MatchReasonToleranceFees, match.Reason)

	// One cent past it is not, and the score fallback cannot rescue a
	// candidate this far off without other signals.
	past := []models.BankTransaction{tx(1, 96999, 5, "")}
	match = FindBestMatch(payout(97500, 10), past, testConfig)
	assert.Nil(t, match)
}

func TestFindBestMatchHeuristicScore(t *testing.T) {
	// 600 cents off, booked next day, gateway keyword in the description:
	// 40 + 30 + 10 = 80, above the threshold.
	candidates := []models.BankTransaction{tx(1, 96900, 11, "transf kiwify ltda")}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchReasonHeuristicScore, match.Reason)
	assert.Equal(t, 80, match.Confidence)
}

func TestFindBestMatchBelowThreshold(t *testing.T) {
	// 600 cents off and five days out with no keyword: 40 + 5 = 45 < 50.
	candidates := []models.BankTransaction{tx(1, 96900, 15, "transferencia")}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	assert.Nil(t, match)
}

func TestFindBestMatchThresholdIsConfigurable(t *testing.T) {
	candidates := []models.BankTransaction{tx(1, 96900, 15, "transferencia")}

	relaxed := MatchConfig{FeeToleranceCents: 500, ScoreThreshold: 40}
	match := FindBestMatch(payout(97500, 10), candidates, relaxed)
	require.NotNil(t, match)
	assert.Equal(t, 45, match.Confidence)
}

func TestFindBestMatchSkipsCurrencyMismatch(t *testing.T) {
	candidates := []models.BankTransaction{
		{ID: 1, AmountCents: 97500, Currency: "USD", BookedAt: day(10)},
	}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	assert.Nil(t, match)
}

func TestFindBestMatchTieBreaksByID(t *testing.T) {
	candidates := []models.BankTransaction{
		tx(7, 97500, 10, ""),
		tx(3, 97500, 10, ""),
	}

	match := FindBestMatch(payout(97500, 10), candidates, testConfig)
	require.NotNil(t, match)
	assert.Equal(t, uint(3), match.Transaction.ID)
}

func TestFindBestMatchNoCandidates(t *testing.T) {
	assert.Nil(t, FindBestMatch(payout(97500, 10), nil, testConfig))
}
