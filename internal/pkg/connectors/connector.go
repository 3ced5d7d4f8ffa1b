package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RawEventEnvelope is the uniform wrapper a connector produces from a raw
// webhook delivery before anything is persisted.
type RawEventEnvelope struct {
	Provider  string            `json:"provider"`
	EventType string            `json:"event_type"`
	OrgID     uint              `json:"org_id"`
	ProjectID *uint             `json:"project_id,omitempty"`
	Payload   []byte            `json:"payload"`
	Headers   map[string]string `json:"headers"`
}

// NormalizedEvent is the provider-agnostic output of Normalize. Exactly one of
// Order/Payment/Refund/Payout is set, matching DomainType.
type NormalizedEvent struct {
	DomainType  string       `json:"domain_type"`
	ExternalRef string       `json:"external_ref"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Order       *OrderData   `json:"order,omitempty"`
	Payment     *PaymentData `json:"payment,omitempty"`
	Refund      *RefundData  `json:"refund,omitempty"`
	Payout      *PayoutData  `json:"payout,omitempty"`
}

// OrderData carries the ledger-relevant fields of a provider sale.
type OrderData struct {
	ExternalOrderID    string `json:"external_order_id"`
	CustomerExternalID string `json:"customer_external_id"`
	CustomerEmail      string `json:"customer_email"`
	CustomerName       string `json:"customer_name"`
	CustomerDocument   string `json:"customer_document,omitempty"`
	ProductName        string `json:"product_name"`
	Status             string `json:"status"`
	GrossAmountCents   int64  `json:"gross_amount_cents"`
	Currency           string `json:"currency"`
}

// PaymentData carries the ledger-relevant fields of a provider charge.
type PaymentData struct {
	ExternalPaymentID string `json:"external_payment_id"`
	ExternalOrderID   string `json:"external_order_id"`
	Status            string `json:"status"`
	AmountCents       int64  `json:"amount_cents"`
	FeeCents          int64  `json:"fee_cents"`
	Currency          string `json:"currency"`
	Method            string `json:"method,omitempty"`
}

// RefundData reverses a previously applied payment.
type RefundData struct {
	ExternalPaymentID string `json:"external_payment_id"`
	ExternalOrderID   string `json:"external_order_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	Reason            string `json:"reason,omitempty"`
}

// PayoutData is a gateway settlement transfer reported over webhook.
type PayoutData struct {
	ExternalPayoutID string `json:"external_payout_id"`
	GrossAmountCents int64  `json:"gross_amount_cents"`
	FeeCents         int64  `json:"fee_cents"`
	NetAmountCents   int64  `json:"net_amount_cents"`
	Currency         string `json:"currency"`
	PayoutDate       string `json:"payout_date"` // yyyy-mm-dd
	Description      string `json:"description,omitempty"`
}

// Connector adapts one payment provider to the pipeline. Normalize must be a
// pure function: identical envelopes always yield identical events and hashes.
type Connector interface {
	Provider() string
	VerifySignature(body []byte, headers map[string]string, secret string) bool
	ParseWebhook(body []byte, headers map[string]string) (*RawEventEnvelope, error)
	Normalize(envelope *RawEventEnvelope) ([]NormalizedEvent, error)
}

// UnsupportedProviderError is returned when no connector is registered for a
// provider key. Never retried.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %s", e.Provider)
}

// UnsupportedEventTypeError is returned for event types the connector has
// never seen, as opposed to known-but-irrelevant types which normalize to an
// empty slice. The two cases are counted separately.
type UnsupportedEventTypeError struct {
	Provider  string
	EventType string
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("unsupported %s event type: %s", e.Provider, e.EventType)
}

// Registry maps provider keys to connectors. Populated at startup, read-only
// afterwards.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry builds a registry from the given connectors.
func NewRegistry(connectors ...Connector) *Registry {
	m := make(map[string]Connector, len(connectors))
	for _, c := range connectors {
		m[c.Provider()] = c
	}
	return &Registry{connectors: m}
}

// Get resolves a provider key to its connector.
func (r *Registry) Get(provider string) (Connector, error) {
	c, ok := r.connectors[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, &UnsupportedProviderError{Provider: provider}
	}
	return c, nil
}

// Providers lists registered provider keys, sorted.
func (r *Registry) Providers() []string {
	keys := make([]string, 0, len(r.connectors))
	for k := range r.connectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizedHash derives the dedup hash for a normalized event. JSON encoding
// of the struct is deterministic (fixed field order), so the same envelope
// always produces the same hash.
func NormalizedHash(provider string, ev NormalizedEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal normalized event: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(ev.DomainType))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
