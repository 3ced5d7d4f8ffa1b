package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripeSigHeader(body []byte, secret string, ts time.Time) string {
	t := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifySignature(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	connector := &StripeConnector{now: func() time.Time { return now }}

	body := []byte(`{"id": "evt_1", "type": "charge.succeeded"}`)
	secret := "whsec_stripe"

	fresh := stripeSigHeader(body, secret, now.Add(-time.Minute))
	assert.True(t, connector.VerifySignature(body, map[string]string{"Stripe-Signature": fresh}, secret))

	// Timestamps past the tolerance are rejected in both directions.
	stale := stripeSigHeader(body, secret, now.Add(-6*time.Minute))
	assert.False(t, connector.VerifySignature(body, map[string]string{"Stripe-Signature": stale}, secret))
	future := stripeSigHeader(body, secret, now.Add(6*time.Minute))
	assert.False(t, connector.VerifySignature(body, map[string]string{"Stripe-Signature": future}, secret))

	wrongSecret := stripeSigHeader(body, "whsec_other", now)
	assert.False(t, connector.VerifySignature(body, map[string]string{"Stripe-Signature": wrongSecret}, secret))
	assert.False(t, connector.VerifySignature(body, map[string]string{"Stripe-Signature": "garbage"}, secret))
	assert.False(t, connector.VerifySignature(body, nil, secret))
}

func TestStripeNormalizeChargeSucceeded(t *testing.T) {
	body := `{
		"id": "evt_1",
		"type": "charge.succeeded",
		"created": 1786795800,
		"data": {"object": {
			"id": "ch_123",
			"amount": 15000,
			"currency": "usd",
			"customer": "cus_42",
			"paid": true,
			"metadata": {"order_id": "order_99"},
			"billing_details": {"email": "buyer@example.com", "name": "Buyer"},
			"payment_method_details": {"type": "card"},
			"description": "Pro plan",
			"application_fee_amount": 450
		}}
	}`
	connector := NewStripeConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NotNil(t, events[0].Order)
	assert.Equal(t, "order_99", events[0].Order.ExternalOrderID)
	assert.Equal(t, "cus_42", events[0].Order.CustomerExternalID)
	assert.Equal(t, int64(15000), events[0].Order.GrossAmountCents)
	assert.Equal(t, "USD", events[0].Order.Currency)

	require.NotNil(t, events[1].Payment)
	assert.Equal(t, "ch_123", events[1].Payment.ExternalPaymentID)
	assert.Equal(t, "order_99", events[1].Payment.ExternalOrderID)
	assert.Equal(t, int64(450), events[1].Payment.FeeCents)
	assert.Equal(t, "card", events[1].Payment.Method)
}

func TestStripeNormalizeChargeRefundedFallsBackToFullAmount(t *testing.T) {
	body := `{
		"id": "evt_2",
		"type": "charge.refunded",
		"created": 1786795800,
		"data": {"object": {"id": "ch_123", "amount": 15000, "currency": "usd", "amount_refunded": 0}}
	}`
	connector := NewStripeConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Refund)
	assert.Equal(t, int64(15000), events[0].Refund.AmountCents)
}

func TestStripeNormalizePayoutPaid(t *testing.T) {
	body := `{
		"id": "evt_3",
		"type": "payout.paid",
		"created": 1786795800,
		"data": {"object": {"id": "po_1", "amount": 98200, "currency": "usd", "arrival_date": 1786752000}}
	}`
	connector := NewStripeConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Payout)
	assert.Equal(t, int64(98200), events[0].Payout.NetAmountCents)
	assert.Equal(t, time.Unix(1786752000, 0).UTC().Format("2006-01-02"), events[0].Payout.PayoutDate)
}

func TestStripeNormalizeIgnoredEventTypes(t *testing.T) {
	connector := NewStripeConnector()

	for _, eventType := range []string{"customer.created", "customer.updated", "payment_intent.created", "invoice.finalized"} {
		envelope := &RawEventEnvelope{
			Provider:  ProviderStripe,
			EventType: eventType,
			Payload:   []byte(`{"id": "evt_x", "type": "` + eventType + `"}`),
		}
		events, err := connector.Normalize(envelope)
		assert.NoError(t, err, eventType)
		assert.Empty(t, events, eventType)
	}
}
