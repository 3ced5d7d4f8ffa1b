package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kiwifyOrderApproved = `{
	"order_id": "ord_abc123",
	"order_status": "paid",
	"webhook_event_type": "order_approved",
	"payment_method": "credit_card",
	"created_at": "2026-08-15T10:30:00Z",
	"Product": {"product_id": "prod_1", "product_name": "Curso de Go"},
	"Customer": {"email": "Maria@Example.com", "full_name": "Maria Silva", "CPF": "12345678900"},
	"Commissions": {"charge_amount": "150.00", "kiwify_fee": "14.90", "currency": "BRL"}
}`

func TestKiwifyNormalizeOrderApproved(t *testing.T) {
	connector := NewKiwifyConnector()

	envelope, err := connector.ParseWebhook([]byte(kiwifyOrderApproved), nil)
	require.NoError(t, err)
	assert.Equal(t, "order_approved", envelope.EventType)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 2)

	order := events[0]
	assert.Equal(t, "order", order.DomainType)
	assert.Equal(t, "ord_abc123", order.ExternalRef)
	require.NotNil(t, order.Order)
	assert.Equal(t, int64(15000), order.Order.GrossAmountCents)
	assert.Equal(t, "BRL", order.Order.Currency)
	assert.Equal(t, "maria@example.com", order.Order.CustomerEmail)
	assert.Equal(t, "maria@example.com", order.Order.CustomerExternalID)
	assert.Equal(t, "paid", order.Order.Status)

	payment := events[1]
	assert.Equal(t, "payment", payment.DomainType)
	require.NotNil(t, payment.Payment)
	assert.Equal(t, int64(15000), payment.Payment.AmountCents)
	assert.Equal(t, int64(1490), payment.Payment.FeeCents)
	assert.Equal(t, "credit_card", payment.Payment.Method)
}

func TestKiwifyNormalizeIsDeterministic(t *testing.T) {
	connector := NewKiwifyConnector()

	envelope, err := connector.ParseWebhook([]byte(kiwifyOrderApproved), nil)
	require.NoError(t, err)

	first, err := connector.Normalize(envelope)
	require.NoError(t, err)
	second, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for i := range first {
		h1, err := NormalizedHash(ProviderKiwify, first[i])
		require.NoError(t, err)
		h2, err := NormalizedHash(ProviderKiwify, second[i])
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	}

	// Order and payment from the same delivery must not collide.
	orderHash, err := NormalizedHash(ProviderKiwify, first[0])
	require.NoError(t, err)
	paymentHash, err := NormalizedHash(ProviderKiwify, first[1])
	require.NoError(t, err)
	assert.NotEqual(t, orderHash, paymentHash)
}

func TestKiwifyNormalizeRefund(t *testing.T) {
	body := `{
		"order_id": "ord_abc123",
		"webhook_event_type": "order_refunded",
		"created_at": "2026-08-20T08:00:00Z",
		"Commissions": {"charge_amount": "150.00", "currency": "BRL"}
	}`
	connector := NewKiwifyConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Refund)
	assert.Equal(t, int64(15000), events[0].Refund.AmountCents)
	assert.Equal(t, "ord_abc123", events[0].Refund.ExternalPaymentID)
}

func TestKiwifyNormalizePayout(t *testing.T) {
	body := `{
		"webhook_event_type": "payout_created",
		"created_at": "2026-08-21T00:00:00Z",
		"Payout": {
			"payout_id": "po_789",
			"gross_amount": "1000.00",
			"fee": "25.00",
			"payout_date": "2026-08-21",
			"currency": "BRL"
		}
	}`
	connector := NewKiwifyConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Payout)
	assert.Equal(t, int64(100000), events[0].Payout.GrossAmountCents)
	assert.Equal(t, int64(2500), events[0].Payout.FeeCents)
	assert.Equal(t, int64(97500), events[0].Payout.NetAmountCents)
	assert.Equal(t, "2026-08-21", events[0].Payout.PayoutDate)
}

func TestKiwifyNormalizeIgnoredEventTypes(t *testing.T) {
	connector := NewKiwifyConnector()

	for _, eventType := range []string{"pix_created", "boleto_created", "order_updated", "chargeback_requested"} {
		envelope := &RawEventEnvelope{
			Provider:  ProviderKiwify,
			EventType: eventType,
			Payload:   []byte(`{"webhook_event_type": "` + eventType + `"}`),
		}
		events, err := connector.Normalize(envelope)
		assert.NoError(t, err, eventType)
		assert.Empty(t, events, eventType)
	}
}

func TestKiwifyNormalizeUnknownEventType(t *testing.T) {
	connector := NewKiwifyConnector()

	envelope := &RawEventEnvelope{
		Provider:  ProviderKiwify,
		EventType: "something_new",
		Payload:   []byte(`{"webhook_event_type": "something_new"}`),
	}
	_, err := connector.Normalize(envelope)
	var unsupported *UnsupportedEventTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "something_new", unsupported.EventType)
}

func TestKiwifyVerifySignature(t *testing.T) {
	connector := NewKiwifyConnector()
	body := []byte(kiwifyOrderApproved)
	secret := "whsec_test"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, connector.VerifySignature(body, map[string]string{"X-Kiwify-Signature": valid}, secret))
	// Header lookup is case-insensitive, fasthttp canonicalizes names.
	assert.True(t, connector.VerifySignature(body, map[string]string{"x-kiwify-signature": valid}, secret))
	assert.False(t, connector.VerifySignature(body, map[string]string{"X-Kiwify-Signature": "deadbeef"}, secret))
	assert.False(t, connector.VerifySignature(body, map[string]string{}, secret))
	assert.False(t, connector.VerifySignature([]byte("tampered"), map[string]string{"X-Kiwify-Signature": valid}, secret))
}

func TestRegistryResolvesKnownProviders(t *testing.T) {
	registry := NewRegistry(NewKiwifyConnector(), NewStripeConnector(), NewHotmartConnector())

	assert.Equal(t, []string{"hotmart", "kiwify", "stripe"}, registry.Providers())

	c, err := registry.Get("Kiwify")
	require.NoError(t, err)
	assert.Equal(t, ProviderKiwify, c.Provider())

	_, err = registry.Get("paypal")
	var unsupported *UnsupportedProviderError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "paypal", unsupported.Provider)
}
