package applier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
)

type fakeLedgerRepo struct {
	customers map[string]*models.Customer
	orders    map[string]*models.Order
	payments  map[string]*models.Payment
	payouts   map[string]*models.PayoutEvent
	nextID    uint
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		customers: make(map[string]*models.Customer),
		orders:    make(map[string]*models.Order),
		payments:  make(map[string]*models.Payment),
		payouts:   make(map[string]*models.PayoutEvent),
	}
}

func (f *fakeLedgerRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeLedgerRepo) GetOrCreateCustomer(c *models.Customer) error {
	key := c.Provider + "/" + c.ExternalID
	if existing, ok := f.customers[key]; ok {
		*c = *existing
		return nil
	}
	c.ID = f.id()
	stored := *c
	f.customers[key] = &stored
	return nil
}

func (f *fakeLedgerRepo) UpsertOrder(o *models.Order) error {
	key := o.Provider + "/" + o.ExternalID
	if existing, ok := f.orders[key]; ok {
		o.ID = existing.ID
	} else if o.ID == 0 {
		o.ID = f.id()
	}
	stored := *o
	f.orders[key] = &stored
	return nil
}

func (f *fakeLedgerRepo) UpsertPayment(p *models.Payment) error {
	key := p.Provider + "/" + p.ExternalID
	if existing, ok := f.payments[key]; ok {
		p.ID = existing.ID
	} else if p.ID == 0 {
		p.ID = f.id()
	}
	stored := *p
	f.payments[key] = &stored
	return nil
}

func (f *fakeLedgerRepo) GetOrderByExternalID(orgID uint, provider, externalID string) (*models.Order, error) {
	if o, ok := f.orders[provider+"/"+externalID]; ok {
		copy := *o
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeLedgerRepo) GetPaymentByExternalID(orgID uint, provider, externalID string) (*models.Payment, error) {
	if p, ok := f.payments[provider+"/"+externalID]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeLedgerRepo) UpsertPayoutEvent(p *models.PayoutEvent) error {
	key := p.Provider + "/" + p.ExternalID
	if _, ok := f.payouts[key]; ok {
		return nil
	}
	p.ID = f.id()
	stored := *p
	f.payouts[key] = &stored
	return nil
}

func (f *fakeLedgerRepo) ListPaidPaymentsWithoutOrder(orgID uint) ([]models.Payment, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) ListOrgIDs() ([]uint, error) {
	return []uint{1}, nil
}

func canonicalEvent(t *testing.T, domainType string, ev connectors.NormalizedEvent) *models.CanonicalEvent {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return &models.CanonicalEvent{
		ID:         1,
		OrgID:      1,
		Provider:   "kiwify",
		DomainType: domainType,
		Data:       string(data),
		OccurredAt: ev.OccurredAt,
	}
}

func orderEvent() connectors.NormalizedEvent {
	return connectors.NormalizedEvent{
		DomainType:  models.DomainTypeOrder,
		ExternalRef: "ord_1",
		OccurredAt:  time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		Order: &connectors.OrderData{
			ExternalOrderID:    "ord_1",
			CustomerExternalID: "maria@example.com",
			CustomerEmail:      "maria@example.com",
			CustomerName:       "Maria",
			ProductName:        "Curso",
			Status:             models.OrderStatusPaid,
			GrossAmountCents:   15000,
			Currency:           "BRL",
		},
	}
}

func paymentEvent() connectors.NormalizedEvent {
	return connectors.NormalizedEvent{
		DomainType:  models.DomainTypePayment,
		ExternalRef: "ord_1",
		OccurredAt:  time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		Payment: &connectors.PaymentData{
			ExternalPaymentID: "ord_1",
			ExternalOrderID:   "ord_1",
			Status:            models.PaymentStatusPaid,
			AmountCents:       15000,
			FeeCents:          1490,
			Currency:          "BRL",
		},
	}
}

func TestApplyOrderCreatesCustomerAndOrder(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)

	err := a.Apply(context.Background(), canonicalEvent(t, models.DomainTypeOrder, orderEvent()))
	require.NoError(t, err)

	require.Len(t, repo.customers, 1)
	require.Len(t, repo.orders, 1)
	order := repo.orders["kiwify/ord_1"]
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(15000), order.GrossAmountCents)
	require.NotNil(t, order.PaidAt)
	assert.NotZero(t, order.CustomerID)
}

func TestApplyIsIdempotent(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)
	ce := canonicalEvent(t, models.DomainTypeOrder, orderEvent())

	require.NoError(t, a.Apply(context.Background(), ce))
	require.NoError(t, a.Apply(context.Background(), ce))
	require.NoError(t, a.Apply(context.Background(), ce))

	assert.Len(t, repo.customers, 1)
	assert.Len(t, repo.orders, 1)
}

func TestApplyPaymentRequiresOrder(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)

	err := a.Apply(context.Background(), canonicalEvent(t, models.DomainTypePayment, paymentEvent()))
	var notReady *OrderNotReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, "ord_1", notReady.ExternalOrderID)

	require.NoError(t, a.Apply(context.Background(), canonicalEvent(t, models.DomainTypeOrder, orderEvent())))
	require.NoError(t, a.Apply(context.Background(), canonicalEvent(t, models.DomainTypePayment, paymentEvent())))

	payment := repo.payments["kiwify/ord_1"]
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.Equal(t, repo.orders["kiwify/ord_1"].ID, payment.OrderID)
}

func TestApplyRefundMarksPaymentAndOrder(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)
	require.NoError(t, a.Apply(context.Background(), canonicalEvent(t, models.DomainTypeOrder, orderEvent())))
	require.NoError(t, a.Apply(context.Background(), canonicalEvent(t, models.DomainTypePayment, paymentEvent())))

	refund := connectors.NormalizedEvent{
		DomainType:  models.DomainTypeRefund,
		ExternalRef: "ord_1",
		OccurredAt:  time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		Refund: &connectors.RefundData{
			ExternalPaymentID: "ord_1",
			ExternalOrderID:   "ord_1",
			AmountCents:       15000,
			Currency:          "BRL",
		},
	}
	require.NoError(t, a.Apply(context.Background(), canonicalEvent(t, models.DomainTypeRefund, refund)))

	assert.Equal(t, models.PaymentStatusRefunded, repo.payments["kiwify/ord_1"].Status)
	require.NotNil(t, repo.payments["kiwify/ord_1"].RefundedAt)
	assert.Equal(t, models.OrderStatusRefunded, repo.orders["kiwify/ord_1"].Status)
}

func TestApplyPayout(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)

	payout := connectors.NormalizedEvent{
		DomainType:  models.DomainTypePayout,
		ExternalRef: "po_1",
		OccurredAt:  time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Payout: &connectors.PayoutData{
			ExternalPayoutID: "po_1",
			GrossAmountCents: 100000,
			FeeCents:         2500,
			NetAmountCents:   97500,
			Currency:         "BRL",
			PayoutDate:       "2026-08-21",
		},
	}
	ce := canonicalEvent(t, models.DomainTypePayout, payout)
	require.NoError(t, a.Apply(context.Background(), ce))
	require.NoError(t, a.Apply(context.Background(), ce))

	require.Len(t, repo.payouts, 1)
	stored := repo.payouts["kiwify/po_1"]
	assert.Equal(t, int64(97500), stored.NetAmountCents)
	assert.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), stored.PayoutDate)
}

func TestApplyMissingIdentityFields(t *testing.T) {
	repo := newFakeLedgerRepo()
	a := New(repo)

	ev := orderEvent()
	ev.Order.ExternalOrderID = ""
	err := a.Apply(context.Background(), canonicalEvent(t, models.DomainTypeOrder, ev))
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "external_order_id", missing.Field)

	bad := &models.CanonicalEvent{ID: 2, Provider: "kiwify", DomainType: "mystery", Data: "{}"}
	assert.Error(t, a.Apply(context.Background(), bad))
}
