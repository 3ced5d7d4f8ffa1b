package connectors

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const ProviderKiwify = "kiwify"

// KiwifyConnector adapts Kiwify checkout webhooks. Kiwify reports decimal
// amounts in major units (e.g. "150.00" BRL), so the connector owns the
// float-to-cents conversion.
type KiwifyConnector struct{}

func NewKiwifyConnector() *KiwifyConnector {
	return &KiwifyConnector{}
}

func (k *KiwifyConnector) Provider() string {
	return ProviderKiwify
}

// VerifySignature checks the X-Kiwify-Signature hex HMAC-SHA256 of the body.
func (k *KiwifyConnector) VerifySignature(body []byte, headers map[string]string, secret string) bool {
	return verifyHexHMAC(body, headerValue(headers, "X-Kiwify-Signature"), secret, sha256.New)
}

type kiwifyPayload struct {
	OrderID          string `json:"order_id"`
	OrderStatus      string `json:"order_status"`
	WebhookEventType string `json:"webhook_event_type"`
	PaymentMethod    string `json:"payment_method"`
	CreatedAt        string `json:"created_at"`
	Product          struct {
		ProductID   string `json:"product_id"`
		ProductName string `json:"product_name"`
	} `json:"Product"`
	Customer struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		CPF      string `json:"CPF"`
	} `json:"Customer"`
	Commissions struct {
		ChargeAmount   interface{} `json:"charge_amount"`
		KiwifyFee      interface{} `json:"kiwify_fee"`
		CurrencyCode   string      `json:"currency"`
		SettlementDate string      `json:"settlement_date"`
	} `json:"Commissions"`
	Payout struct {
		PayoutID    string      `json:"payout_id"`
		GrossAmount interface{} `json:"gross_amount"`
		Fee         interface{} `json:"fee"`
		NetAmount   interface{} `json:"net_amount"`
		Currency    string      `json:"currency"`
		PayoutDate  string      `json:"payout_date"`
	} `json:"Payout"`
}

func (k *KiwifyConnector) ParseWebhook(body []byte, headers map[string]string) (*RawEventEnvelope, error) {
	var payload kiwifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid kiwify payload: %w", err)
	}
	eventType := strings.TrimSpace(payload.WebhookEventType)
	if eventType == "" {
		return nil, fmt.Errorf("kiwify payload missing webhook_event_type")
	}
	return &RawEventEnvelope{
		Provider:  ProviderKiwify,
		EventType: eventType,
		Payload:   body,
		Headers:   headers,
	}, nil
}

// Normalize maps Kiwify event types onto canonical events. order_approved
// yields an order plus its payment; order_refunded yields a refund;
// payout_created yields a payout. Checkout lifecycle noise (pix_created,
// boleto_created, order_updated) is known and deliberately ignored.
func (k *KiwifyConnector) Normalize(envelope *RawEventEnvelope) ([]NormalizedEvent, error) {
	var payload kiwifyPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid kiwify payload: %w", err)
	}

	switch envelope.EventType {
	case "order_approved":
		return k.normalizeOrderApproved(payload)
	case "order_refunded":
		return k.normalizeOrderRefunded(payload)
	case "payout_created":
		return k.normalizePayout(payload)
	case "pix_created", "boleto_created", "order_updated", "chargeback_requested":
		// Known lifecycle events with no ledger effect.
		return nil, nil
	default:
		return nil, &UnsupportedEventTypeError{Provider: ProviderKiwify, EventType: envelope.EventType}
	}
}

func (k *KiwifyConnector) normalizeOrderApproved(payload kiwifyPayload) ([]NormalizedEvent, error) {
	if payload.OrderID == "" {
		return nil, fmt.Errorf("kiwify order_approved missing order_id")
	}
	occurredAt, err := parseKiwifyTime(payload.CreatedAt)
	if err != nil {
		return nil, err
	}
	amountCents, err := ParseDecimalAmount(payload.Commissions.ChargeAmount)
	if err != nil {
		return nil, err
	}
	feeCents, err := ParseDecimalAmount(payload.Commissions.KiwifyFee)
	if err != nil {
		return nil, err
	}
	currency := defaultCurrency(payload.Commissions.CurrencyCode)

	order := NormalizedEvent{
		DomainType:  "order",
		ExternalRef: payload.OrderID,
		OccurredAt:  occurredAt,
		Order: &OrderData{
			ExternalOrderID:    payload.OrderID,
			CustomerExternalID: customerExternalID(payload.Customer.Email, payload.Customer.CPF),
			CustomerEmail:      strings.ToLower(strings.TrimSpace(payload.Customer.Email)),
			CustomerName:       strings.TrimSpace(payload.Customer.FullName),
			CustomerDocument:   strings.TrimSpace(payload.Customer.CPF),
			ProductName:        strings.TrimSpace(payload.Product.ProductName),
			Status:             "paid",
			GrossAmountCents:   amountCents,
			Currency:           currency,
		},
	}
	payment := NormalizedEvent{
		DomainType:  "payment",
		ExternalRef: payload.OrderID,
		OccurredAt:  occurredAt,
		Payment: &PaymentData{
			ExternalPaymentID: payload.OrderID,
			ExternalOrderID:   payload.OrderID,
			Status:            "paid",
			AmountCents:       amountCents,
			FeeCents:          feeCents,
			Currency:          currency,
			Method:            strings.TrimSpace(payload.PaymentMethod),
		},
	}
	return []NormalizedEvent{order, payment}, nil
}

func (k *KiwifyConnector) normalizeOrderRefunded(payload kiwifyPayload) ([]NormalizedEvent, error) {
	if payload.OrderID == "" {
		return nil, fmt.Errorf("kiwify order_refunded missing order_id")
	}
	occurredAt, err := parseKiwifyTime(payload.CreatedAt)
	if err != nil {
		return nil, err
	}
	amountCents, err := ParseDecimalAmount(payload.Commissions.ChargeAmount)
	if err != nil {
		return nil, err
	}
	return []NormalizedEvent{{
		DomainType:  "refund",
		ExternalRef: payload.OrderID,
		OccurredAt:  occurredAt,
		Refund: &RefundData{
			ExternalPaymentID: payload.OrderID,
			ExternalOrderID:   payload.OrderID,
			AmountCents:       amountCents,
			Currency:          defaultCurrency(payload.Commissions.CurrencyCode),
		},
	}}, nil
}

func (k *KiwifyConnector) normalizePayout(payload kiwifyPayload) ([]NormalizedEvent, error) {
	p := payload.Payout
	if p.PayoutID == "" {
		return nil, fmt.Errorf("kiwify payout_created missing payout_id")
	}
	payoutDate, err := time.Parse("2006-01-02", p.PayoutDate)
	if err != nil {
		return nil, fmt.Errorf("invalid kiwify payout_date %q: %w", p.PayoutDate, err)
	}
	gross, err := ParseDecimalAmount(p.GrossAmount)
	if err != nil {
		return nil, err
	}
	fee, err := ParseDecimalAmount(p.Fee)
	if err != nil {
		return nil, err
	}
	net, err := ParseDecimalAmount(p.NetAmount)
	if err != nil {
		return nil, err
	}
	if net == 0 {
		net = gross - fee
	}
	return []NormalizedEvent{{
		DomainType:  "payout",
		ExternalRef: p.PayoutID,
		OccurredAt:  payoutDate,
		Payout: &PayoutData{
			ExternalPayoutID: p.PayoutID,
			GrossAmountCents: gross,
			FeeCents:         fee,
			NetAmountCents:   net,
			Currency:         defaultCurrency(p.Currency),
			PayoutDate:       payoutDate.Format("2006-01-02"),
			Description:      "kiwify payout " + p.PayoutID,
		},
	}}, nil
}

func parseKiwifyTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("kiwify payload missing created_at")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid kiwify created_at %q", raw)
}

func customerExternalID(email, document string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return email
	}
	return strings.TrimSpace(document)
}

func defaultCurrency(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return "BRL"
	}
	return c
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
