// Package applier projects canonical events onto the ledger tables. Every
// write path is an upsert on a natural key, so applying the same canonical
// event any number of times converges on the same ledger state.
package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
)

// MissingFieldError marks a canonical event that can never be applied because
// an identity field is empty. Retrying cannot fix it.
type MissingFieldError struct {
	DomainType string
	Field      string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s event missing required field %s", e.DomainType, e.Field)
}

// OrderNotReadyError marks a payment or refund whose order has not been
// applied yet. Transient: the order event is usually a sibling job.
type OrderNotReadyError struct {
	Provider        string
	ExternalOrderID string
}

func (e *OrderNotReadyError) Error() string {
	return fmt.Sprintf("order %s/%s not applied yet", e.Provider, e.ExternalOrderID)
}

// Applier turns canonical events into ledger rows.
type Applier struct {
	ledger repository.LedgerRepository
}

// New creates an applier backed by the given ledger repository.
func New(ledger repository.LedgerRepository) *Applier {
	return &Applier{ledger: ledger}
}

// Apply projects one canonical event. Idempotent.
func (a *Applier) Apply(ctx context.Context, ce *models.CanonicalEvent) error {
	var ev connectors.NormalizedEvent
	if err := json.Unmarshal([]byte(ce.Data), &ev); err != nil {
		return fmt.Errorf("failed to decode canonical event %d: %w", ce.ID, err)
	}

	switch ce.DomainType {
	case models.DomainTypeOrder:
		return a.applyOrder(ce, ev.Order, ev.OccurredAt)
	case models.DomainTypePayment:
		return a.applyPayment(ce, ev.Payment, ev.OccurredAt)
	case models.DomainTypeRefund:
		return a.applyRefund(ce, ev.Refund, ev.OccurredAt)
	case models.DomainTypePayout:
		return a.applyPayout(ce, ev.Payout)
	default:
		return fmt.Errorf("canonical event %d has unknown domain type %q", ce.ID, ce.DomainType)
	}
}

func (a *Applier) applyOrder(ce *models.CanonicalEvent, data *connectors.OrderData, occurredAt time.Time) error {
	if data == nil {
		return &MissingFieldError{DomainType: models.DomainTypeOrder, Field: "order"}
	}
	if data.ExternalOrderID == "" {
		return &MissingFieldError{DomainType: models.DomainTypeOrder, Field: "external_order_id"}
	}
	if data.CustomerExternalID == "" {
		return &MissingFieldError{DomainType: models.DomainTypeOrder, Field: "customer_external_id"}
	}

	customer := &models.Customer{
		OrgID:      ce.OrgID,
		Provider:   ce.Provider,
		ExternalID: data.CustomerExternalID,
		Email:      data.CustomerEmail,
		Name:       data.CustomerName,
		Document:   data.CustomerDocument,
	}
	if err := a.ledger.GetOrCreateCustomer(customer); err != nil {
		return fmt.Errorf("failed to resolve customer: %w", err)
	}

	order := &models.Order{
		OrgID:            ce.OrgID,
		Provider:         ce.Provider,
		ExternalID:       data.ExternalOrderID,
		CustomerID:       customer.ID,
		ProductName:      data.ProductName,
		Status:           data.Status,
		GrossAmountCents: data.GrossAmountCents,
		Currency:         data.Currency,
	}
	if data.Status == models.OrderStatusPaid {
		paidAt := occurredAt
		order.PaidAt = &paidAt
	}
	if err := a.ledger.UpsertOrder(order); err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	log.Debugf("[Applier] Upserted order %s/%s (org=%d)", ce.Provider, data.ExternalOrderID, ce.OrgID)
	return nil
}

func (a *Applier) applyPayment(ce *models.CanonicalEvent, data *connectors.PaymentData, occurredAt time.Time) error {
	if data == nil {
		return &MissingFieldError{DomainType: models.DomainTypePayment, Field: "payment"}
	}
	if data.ExternalPaymentID == "" {
		return &MissingFieldError{DomainType: models.DomainTypePayment, Field: "external_payment_id"}
	}
	if data.ExternalOrderID == "" {
		return &MissingFieldError{DomainType: models.DomainTypePayment, Field: "external_order_id"}
	}

	order, err := a.ledger.GetOrderByExternalID(ce.OrgID, ce.Provider, data.ExternalOrderID)
	if err != nil {
		return fmt.Errorf("failed to look up order: %w", err)
	}
	if order == nil {
		// The order event is applied by a sibling job; retry catches up.
		return &OrderNotReadyError{Provider: ce.Provider, ExternalOrderID: data.ExternalOrderID}
	}

	payment := &models.Payment{
		OrgID:       ce.OrgID,
		Provider:    ce.Provider,
		ExternalID:  data.ExternalPaymentID,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      data.Status,
		AmountCents: data.AmountCents,
		FeeCents:    data.FeeCents,
		Currency:    data.Currency,
		Method:      data.Method,
	}
	if data.Status == models.PaymentStatusPaid {
		paidAt := occurredAt
		payment.PaidAt = &paidAt
	}
	if err := a.ledger.UpsertPayment(payment); err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	log.Debugf("[Applier] Upserted payment %s/%s (org=%d)", ce.Provider, data.ExternalPaymentID, ce.OrgID)
	return nil
}

func (a *Applier) applyRefund(ce *models.CanonicalEvent, data *connectors.RefundData, occurredAt time.Time) error {
	if data == nil {
		return &MissingFieldError{DomainType: models.DomainTypeRefund, Field: "refund"}
	}
	if data.ExternalPaymentID == "" {
		return &MissingFieldError{DomainType: models.DomainTypeRefund, Field: "external_payment_id"}
	}

	payment, err := a.ledger.GetPaymentByExternalID(ce.OrgID, ce.Provider, data.ExternalPaymentID)
	if err != nil {
		return fmt.Errorf("failed to look up payment: %w", err)
	}
	if payment == nil {
		return &OrderNotReadyError{Provider: ce.Provider, ExternalOrderID: data.ExternalOrderID}
	}

	refundedAt := occurredAt
	payment.Status = models.PaymentStatusRefunded
	payment.RefundedAt = &refundedAt
	if err := a.ledger.UpsertPayment(payment); err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	order, err := a.ledger.GetOrderByExternalID(ce.OrgID, ce.Provider, data.ExternalOrderID)
	if err != nil {
		return fmt.Errorf("failed to look up order: %w", err)
	}
	if order != nil {
		order.Status = models.OrderStatusRefunded
		if err := a.ledger.UpsertOrder(order); err != nil {
			return fmt.Errorf("failed to mark order refunded: %w", err)
		}
	}
	log.Debugf("[Applier] Applied refund for payment %s/%s (org=%d)", ce.Provider, data.ExternalPaymentID, ce.OrgID)
	return nil
}

func (a *Applier) applyPayout(ce *models.CanonicalEvent, data *connectors.PayoutData) error {
	if data == nil {
		return &MissingFieldError{DomainType: models.DomainTypePayout, Field: "payout"}
	}
	if data.ExternalPayoutID == "" {
		return &MissingFieldError{DomainType: models.DomainTypePayout, Field: "external_payout_id"}
	}

	payoutDate, err := time.Parse("2006-01-02", data.PayoutDate)
	if err != nil {
		return &MissingFieldError{DomainType: models.DomainTypePayout, Field: "payout_date"}
	}

	payout := &models.PayoutEvent{
		OrgID:            ce.OrgID,
		Provider:         ce.Provider,
		ExternalID:       data.ExternalPayoutID,
		GrossAmountCents: data.GrossAmountCents,
		FeeCents:         data.FeeCents,
		NetAmountCents:   data.NetAmountCents,
		Currency:         data.Currency,
		PayoutDate:       payoutDate,
		Description:      data.Description,
	}
	if err := a.ledger.UpsertPayoutEvent(payout); err != nil {
		return fmt.Errorf("failed to upsert payout event: %w", err)
	}
	log.Debugf("[Applier] Upserted payout %s/%s (org=%d)", ce.Provider, data.ExternalPayoutID, ce.OrgID)
	return nil
}
