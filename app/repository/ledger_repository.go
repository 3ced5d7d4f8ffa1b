package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/ledgerlink/app/models"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// GetOrCreateCustomer resolves a customer by natural identity, creating it on
// first sight. Concurrent appliers racing on the same identity both end up
// with the one row the unique index admits.
func (r *ledgerRepository) GetOrCreateCustomer(customer *models.Customer) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "org_id"},
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"name",
			"document",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}

	return r.db.Where("org_id = ? AND provider = ? AND external_id = ?",
		customer.OrgID, customer.Provider, customer.ExternalID).
		First(customer).Error
}

func (r *ledgerRepository) UpsertOrder(order *models.Order) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "org_id"},
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"product_name",
			"status",
			"gross_amount_cents",
			"currency",
			"paid_at",
			"updated_at",
		}),
	}).Create(order).Error; err != nil {
		return err
	}

	return r.db.Where("org_id = ? AND provider = ? AND external_id = ?",
		order.OrgID, order.Provider, order.ExternalID).
		First(order).Error
}

func (r *ledgerRepository) UpsertPayment(payment *models.Payment) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "org_id"},
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"order_id",
			"customer_id",
			"status",
			"amount_cents",
			"fee_cents",
			"currency",
			"method",
			"paid_at",
			"refunded_at",
			"updated_at",
		}),
	}).Create(payment).Error; err != nil {
		return err
	}

	return r.db.Where("org_id = ? AND provider = ? AND external_id = ?",
		payment.OrgID, payment.Provider, payment.ExternalID).
		First(payment).Error
}

func (r *ledgerRepository) GetOrderByExternalID(orgID uint, provider, externalID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("org_id = ? AND provider = ? AND external_id = ?", orgID, provider, externalID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *ledgerRepository) GetPaymentByExternalID(orgID uint, provider, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("org_id = ? AND provider = ? AND external_id = ?", orgID, provider, externalID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *ledgerRepository) UpsertPayoutEvent(payout *models.PayoutEvent) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "org_id"},
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(payout).Error; err != nil {
		return err
	}

	return r.db.Where("org_id = ? AND provider = ? AND external_id = ?",
		payout.OrgID, payout.Provider, payout.ExternalID).
		First(payout).Error
}

func (r *ledgerRepository) ListPaidPaymentsWithoutOrder(orgID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("payments.org_id = ? AND payments.status = ?", orgID, models.PaymentStatusPaid).
		Where("payments.order_id = 0 OR NOT EXISTS (SELECT 1 FROM orders WHERE orders.id = payments.order_id)").
		Find(&payments).Error
	return payments, err
}

func (r *ledgerRepository) ListOrgIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.RawEvent{}).Distinct("org_id").Pluck("org_id", &ids).Error
	return ids, err
}
