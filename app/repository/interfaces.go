package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ledgerlink/ledgerlink/app/models"
)

// RawEventRepository defines database operations on inbound webhook events
type RawEventRepository interface {
	CreateIfNotExists(event *models.RawEvent) (bool, *models.RawEvent, error)
	GetByID(id uint) (*models.RawEvent, error)
	MarkNormalized(id uint) error
	MarkIgnored(id uint) error
	MarkFailed(id uint, processingError string) error
	ListByStatus(status string, offset, limit int) ([]models.RawEvent, error)
	CountByStatus(status string) (int64, error)
	Count() (int64, error)
	DeleteTerminalOlderThan(cutoff time.Time, keepIDs []uint) (int64, error)
}

// CanonicalEventRepository defines database operations on normalized events
type CanonicalEventRepository interface {
	CreateIfNotExists(event *models.CanonicalEvent) (bool, *models.CanonicalEvent, error)
	GetByID(id uint) (*models.CanonicalEvent, error)
	Count() (int64, error)
}

// LedgerRepository defines upsert-safe operations on ledger entities
type LedgerRepository interface {
	GetOrCreateCustomer(customer *models.Customer) error
	UpsertOrder(order *models.Order) error
	UpsertPayment(payment *models.Payment) error
	GetOrderByExternalID(orgID uint, provider, externalID string) (*models.Order, error)
	GetPaymentByExternalID(orgID uint, provider, externalID string) (*models.Payment, error)
	UpsertPayoutEvent(payout *models.PayoutEvent) error
	ListPaidPaymentsWithoutOrder(orgID uint) ([]models.Payment, error)
	ListOrgIDs() ([]uint, error)
}

// ReconRepository defines operations for the matching engine and its read views
type ReconRepository interface {
	ListUnmatchedPayouts(orgID uint, limit int) ([]models.PayoutEvent, error)
	ListCandidateTransactions(orgID uint, around time.Time, windowDays int) ([]models.BankTransaction, error)
	MatchedTransactionIDs(orgID uint) (map[uint]struct{}, error)
	CreateMatchResult(result *models.MatchResult) (bool, error)
	InsertBankTransactionIfNew(tx *models.BankTransaction) (bool, error)
	ListUnmatchedPayoutsOlderThan(orgID uint, cutoff time.Time) ([]models.PayoutEvent, error)
	ConfidenceDistribution(orgID uint) ([]models.ConfidenceBucket, error)
}

// AnomalyRepository defines operations for the detector framework
type AnomalyRepository interface {
	HasOpen(orgID uint, anomalyType string, entityID uint) (bool, error)
	Create(anomaly *models.Anomaly) error
	Resolve(id uint) error
	GetByID(id uint) (*models.Anomaly, error)
	ListByStatus(status string, offset, limit int) ([]models.Anomaly, error)
	OpenCounts() ([]models.AnomalyCount, error)
	OpenRawEventIDs() ([]uint, error)
}

// Repositories is a container for all repository implementations
type Repositories struct {
	RawEvent  RawEventRepository
	Canonical CanonicalEventRepository
	Ledger    LedgerRepository
	Recon     ReconRepository
	Anomaly   AnomalyRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		RawEvent:  NewRawEventRepository(db),
		Canonical: NewCanonicalEventRepository(db),
		Ledger:    NewLedgerRepository(db),
		Recon:     NewReconRepository(db),
		Anomaly:   NewAnomalyRepository(db),
	}
}
