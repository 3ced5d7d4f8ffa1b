package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const ProviderHotmart = "hotmart"

// HotmartConnector adapts Hotmart purchase webhooks. Hotmart reports decimal
// amounts in major units and authenticates deliveries with a shared hottok.
type HotmartConnector struct{}

func NewHotmartConnector() *HotmartConnector {
	return &HotmartConnector{}
}

func (h *HotmartConnector) Provider() string {
	return ProviderHotmart
}

// VerifySignature accepts either the legacy X-HOTMART-HOTTOK shared token or
// an X-Hotmart-Signature hex HMAC-SHA256 of the body.
func (h *HotmartConnector) VerifySignature(body []byte, headers map[string]string, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		return false
	}
	if hottok := strings.TrimSpace(headerValue(headers, "X-HOTMART-HOTTOK")); hottok != "" {
		return hmacSafeCompare(hottok, secret)
	}
	return verifyHexHMAC(body, headerValue(headers, "X-Hotmart-Signature"), secret, sha256.New)
}

func hmacSafeCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

type hotmartPayload struct {
	Event        string `json:"event"`
	CreationDate int64  `json:"creation_date"` // epoch millis
	Data         struct {
		Purchase struct {
			Transaction string `json:"transaction"`
			Status      string `json:"status"`
			OrderDate   int64  `json:"order_date"` // epoch millis
			PaymentType string `json:"payment_type"`
			Price       struct {
				Value        float64 `json:"value"`
				CurrencyCode string  `json:"currency_code"`
			} `json:"price"`
		} `json:"purchase"`
		Product struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
		Buyer struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Document string `json:"document"`
		} `json:"buyer"`
	} `json:"data"`
}

func (h *HotmartConnector) ParseWebhook(body []byte, headers map[string]string) (*RawEventEnvelope, error) {
	var payload hotmartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid hotmart payload: %w", err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("hotmart payload missing event")
	}
	return &RawEventEnvelope{
		Provider:  ProviderHotmart,
		EventType: payload.Event,
		Payload:   body,
		Headers:   headers,
	}, nil
}

// Normalize maps Hotmart purchase events onto canonical events. Subscription
// and cart lifecycle events have no ledger effect.
func (h *HotmartConnector) Normalize(envelope *RawEventEnvelope) ([]NormalizedEvent, error) {
	var payload hotmartPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid hotmart payload: %w", err)
	}

	switch envelope.EventType {
	case "PURCHASE_APPROVED":
		return h.normalizePurchase(payload, "paid")
	case "PURCHASE_REFUNDED":
		return h.normalizeRefund(payload)
	case "PURCHASE_CANCELED", "PURCHASE_BILLET_PRINTED", "SUBSCRIPTION_CANCELLATION", "CART_ABANDONMENT":
		return nil, nil
	default:
		return nil, &UnsupportedEventTypeError{Provider: ProviderHotmart, EventType: envelope.EventType}
	}
}

func (h *HotmartConnector) normalizePurchase(payload hotmartPayload, status string) ([]NormalizedEvent, error) {
	purchase := payload.Data.Purchase
	if purchase.Transaction == "" {
		return nil, fmt.Errorf("hotmart purchase missing transaction")
	}
	occurredAt := hotmartTime(purchase.OrderDate, payload.CreationDate)
	amountCents := DecimalToCents(purchase.Price.Value)
	currency := defaultCurrency(purchase.Price.CurrencyCode)
	buyer := payload.Data.Buyer

	order := NormalizedEvent{
		DomainType:  "order",
		ExternalRef: purchase.Transaction,
		OccurredAt:  occurredAt,
		Order: &OrderData{
			ExternalOrderID:    purchase.Transaction,
			CustomerExternalID: customerExternalID(buyer.Email, buyer.Document),
			CustomerEmail:      strings.ToLower(strings.TrimSpace(buyer.Email)),
			CustomerName:       strings.TrimSpace(buyer.Name),
			CustomerDocument:   strings.TrimSpace(buyer.Document),
			ProductName:        strings.TrimSpace(payload.Data.Product.Name),
			Status:             status,
			GrossAmountCents:   amountCents,
			Currency:           currency,
		},
	}
	payment := NormalizedEvent{
		DomainType:  "payment",
		ExternalRef: purchase.Transaction,
		OccurredAt:  occurredAt,
		Payment: &PaymentData{
			ExternalPaymentID: purchase.Transaction,
			ExternalOrderID:   purchase.Transaction,
			Status:            status,
			AmountCents:       amountCents,
			Currency:          currency,
			Method:            strings.ToLower(strings.TrimSpace(purchase.PaymentType)),
		},
	}
	return []NormalizedEvent{order, payment}, nil
}

func (h *HotmartConnector) normalizeRefund(payload hotmartPayload) ([]NormalizedEvent, error) {
	purchase := payload.Data.Purchase
	if purchase.Transaction == "" {
		return nil, fmt.Errorf("hotmart refund missing transaction")
	}
	return []NormalizedEvent{{
		DomainType:  "refund",
		ExternalRef: purchase.Transaction,
		OccurredAt:  hotmartTime(purchase.OrderDate, payload.CreationDate),
		Refund: &RefundData{
			ExternalPaymentID: purchase.Transaction,
			ExternalOrderID:   purchase.Transaction,
			AmountCents:       DecimalToCents(purchase.Price.Value),
			Currency:          defaultCurrency(purchase.Price.CurrencyCode),
		},
	}}, nil
}

func hotmartTime(millis ...int64) time.Time {
	for _, m := range millis {
		if m > 0 {
			return time.UnixMilli(m).UTC()
		}
	}
	return time.Time{}
}
