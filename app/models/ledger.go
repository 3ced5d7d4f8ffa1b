package models

import "time"

const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"
	OrderStatusCanceled = "canceled"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// Customer is a ledger party resolved from provider identity fields.
// `(org_id, provider, external_id)` is the natural key; applying the same
// canonical event twice upserts the same row.
type Customer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrgID      uint      `gorm:"not null;uniqueIndex:ux_customers_identity,priority:1" json:"org_id"`
	Provider   string    `gorm:"type:varchar(40);not null;uniqueIndex:ux_customers_identity,priority:2" json:"provider"`
	ExternalID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_customers_identity,priority:3" json:"external_id"`
	Email      string    `gorm:"type:varchar(200);index" json:"email"`
	Name       string    `gorm:"type:varchar(150)" json:"name"`
	Document   string    `gorm:"type:varchar(40)" json:"document"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Order is the ledger projection of a provider sale.
type Order struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OrgID            uint       `gorm:"not null;uniqueIndex:ux_orders_identity,priority:1" json:"org_id"`
	Provider         string     `gorm:"type:varchar(40);not null;uniqueIndex:ux_orders_identity,priority:2" json:"provider"`
	ExternalID       string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_orders_identity,priority:3" json:"external_id"`
	CustomerID       uint       `gorm:"not null;index" json:"customer_id"`
	ProductName      string     `gorm:"type:varchar(255)" json:"product_name"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	GrossAmountCents int64      `gorm:"not null;default:0" json:"gross_amount_cents"`
	Currency         string     `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Payment is the ledger projection of a provider charge against an order.
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrgID       uint       `gorm:"not null;uniqueIndex:ux_payments_identity,priority:1" json:"org_id"`
	Provider    string     `gorm:"type:varchar(40);not null;uniqueIndex:ux_payments_identity,priority:2" json:"provider"`
	ExternalID  string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_identity,priority:3" json:"external_id"`
	OrderID     uint       `gorm:"not null;index" json:"order_id"`
	CustomerID  uint       `gorm:"not null;index" json:"customer_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AmountCents int64      `gorm:"not null;default:0" json:"amount_cents"`
	FeeCents    int64      `gorm:"not null;default:0" json:"fee_cents"`
	Currency    string     `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	Method      string     `gorm:"type:varchar(40)" json:"method"`
	PaidAt      *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	RefundedAt  *time.Time `gorm:"type:timestamp;default:null" json:"refunded_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
