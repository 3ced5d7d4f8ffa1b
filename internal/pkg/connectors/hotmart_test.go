package connectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hotmartPurchaseApproved = `{
	"event": "PURCHASE_APPROVED",
	"creation_date": 1755254400000,
	"data": {
		"purchase": {
			"transaction": "HP12345",
			"status": "APPROVED",
			"order_date": 1755250800000,
			"payment_type": "CREDIT_CARD",
			"price": {"value": 297.5, "currency_code": "BRL"}
		},
		"product": {"id": 42, "name": "Mentoria"},
		"buyer": {"email": "joao@example.com", "name": "Joao", "document": "98765432100"}
	}
}`

func TestHotmartNormalizePurchaseApproved(t *testing.T) {
	connector := NewHotmartConnector()

	envelope, err := connector.ParseWebhook([]byte(hotmartPurchaseApproved), nil)
	require.NoError(t, err)
	assert.Equal(t, "PURCHASE_APPROVED", envelope.EventType)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NotNil(t, events[0].Order)
	assert.Equal(t, "HP12345", events[0].Order.ExternalOrderID)
	assert.Equal(t, int64(29750), events[0].Order.GrossAmountCents)
	assert.Equal(t, time.UnixMilli(1755250800000).UTC(), events[0].OccurredAt)

	require.NotNil(t, events[1].Payment)
	assert.Equal(t, "credit_card", events[1].Payment.Method)
	assert.Equal(t, int64(29750), events[1].Payment.AmountCents)
}

func TestHotmartNormalizeRefund(t *testing.T) {
	body := `{
		"event": "PURCHASE_REFUNDED",
		"creation_date": 1755254400000,
		"data": {"purchase": {"transaction": "HP12345", "price": {"value": 297.5, "currency_code": "BRL"}}}
	}`
	connector := NewHotmartConnector()

	envelope, err := connector.ParseWebhook([]byte(body), nil)
	require.NoError(t, err)

	events, err := connector.Normalize(envelope)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Refund)
	assert.Equal(t, int64(29750), events[0].Refund.AmountCents)
}

func TestHotmartVerifySignatureHottok(t *testing.T) {
	connector := NewHotmartConnector()
	body := []byte(hotmartPurchaseApproved)

	assert.True(t, connector.VerifySignature(body, map[string]string{"X-HOTMART-HOTTOK": "tok_secret"}, "tok_secret"))
	assert.False(t, connector.VerifySignature(body, map[string]string{"X-HOTMART-HOTTOK": "tok_wrong"}, "tok_secret"))
	assert.False(t, connector.VerifySignature(body, map[string]string{}, "tok_secret"))
	assert.False(t, connector.VerifySignature(body, map[string]string{"X-HOTMART-HOTTOK": "tok_secret"}, ""))
}
