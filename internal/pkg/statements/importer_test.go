package statements

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type fakeReconRepo struct {
	inserted []models.BankTransaction
	seen     map[string]struct{}
}

func newFakeReconRepo() *fakeReconRepo {
	return &fakeReconRepo{seen: make(map[string]struct{})}
}

func (f *fakeReconRepo) InsertBankTransactionIfNew(tx *models.BankTransaction) (bool, error) {
	if _, ok := f.seen[tx.LineHash]; ok {
		return false, nil
	}
	f.seen[tx.LineHash] = struct{}{}
	f.inserted = append(f.inserted, *tx)
	return true, nil
}

func (f *fakeReconRepo) ListUnmatchedPayouts(orgID uint, limit int) ([]models.PayoutEvent, error) {
	return nil, nil
}

func (f *fakeReconRepo) ListCandidateTransactions(orgID uint, around time.Time, windowDays int) ([]models.BankTransaction, error) {
	return nil, nil
}

func (f *fakeReconRepo) MatchedTransactionIDs(orgID uint) (map[uint]struct{}, error) {
	return nil, nil
}

func (f *fakeReconRepo) CreateMatchResult(result *models.MatchResult) (bool, error) {
	return false, nil
}

func (f *fakeReconRepo) ListUnmatchedPayoutsOlderThan(orgID uint, cutoff time.Time) ([]models.PayoutEvent, error) {
	return nil, nil
}

func (f *fakeReconRepo) ConfidenceDistribution(orgID uint) ([]models.ConfidenceBucket, error) {
	return nil, nil
}

const statementCSV = `booked_at,amount,currency,description
2026-08-10,975.00,BRL,TED KIWIFY PAGAMENTOS
2026-08-11,-120.50,BRL,TARIFA BANCARIA
2026-08-12,981.37,BRL,TRANSF STRIPE
`

func TestImportReaderInsertsLines(t *testing.T) {
	repo := newFakeReconRepo()
	importer := New(nil, repo)

	summary, err := importer.ImportReader(context.Background(), 1, "main", strings.NewReader(statementCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 0, summary.Duplicates)
	assert.Equal(t, 0, summary.Invalid)

	require.Len(t, repo.inserted, 3)
	first := repo.inserted[0]
	assert.Equal(t, int64(97500), first.AmountCents)
	assert.Equal(t, "BRL", first.Currency)
	assert.Equal(t, "TED KIWIFY PAGAMENTOS", first.Description)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), first.BookedAt)
	assert.Equal(t, int64(-12050), repo.inserted[1].AmountCents)
}

func TestImportReaderIsIdempotent(t *testing.T) {
	repo := newFakeReconRepo()
	importer := New(nil, repo)

	_, err := importer.ImportReader(context.Background(), 1, "main", strings.NewReader(statementCSV))
	require.NoError(t, err)

	summary, err := importer.ImportReader(context.Background(), 1, "main", strings.NewReader(statementCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 3, summary.Duplicates)
	assert.Len(t, repo.inserted, 3)
}

func TestImportReaderSkipsMalformedLines(t *testing.T) {
	csv := `2026-08-10,975.00,BRL,ok line
not-a-date,10.00,BRL,bad date
2026-08-11,abc,BRL,bad amount
2026-08-12,10.001,BRL,too many decimals
2026-08-13,10.00,REAIS,bad currency
2026-08-14,10.00,BRL,another ok line
`
	repo := newFakeReconRepo()
	importer := New(nil, repo)

	summary, err := importer.ImportReader(context.Background(), 1, "main", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 4, summary.Invalid)
}

func TestParseAmountCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"975.00", 97500, false},
		{"975", 97500, false},
		{"975.5", 97550, false},
		{"-120.50", -12050, false},
		{"+3.07", 307, false},
		{".99", 99, false},
		{"0.00", 0, false},
		{"", 0, true},
		{"12.345", 0, true},
		{"12,34", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAmountCents(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
