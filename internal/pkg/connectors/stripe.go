package connectors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const ProviderStripe = "stripe"

// StripeConnector adapts Stripe events. Stripe already reports integer
// minor-unit amounts, so no decimal conversion happens here.
type StripeConnector struct {
	// now is injectable for signature timestamp tests.
	now func() time.Time
}

func NewStripeConnector() *StripeConnector {
	return &StripeConnector{now: time.Now}
}

func (s *StripeConnector) Provider() string {
	return ProviderStripe
}

// VerifySignature checks the Stripe-Signature signed-payload header.
func (s *StripeConnector) VerifySignature(body []byte, headers map[string]string, secret string) bool {
	return verifyStripeSignature(body, headerValue(headers, "Stripe-Signature"), secret, s.now())
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCharge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer"`
	Paid     bool   `json:"paid"`
	Refunded bool   `json:"refunded"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
	BillingDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"billing_details"`
	PaymentMethodDetails struct {
		Type string `json:"type"`
	} `json:"payment_method_details"`
	Description          string `json:"description"`
	ApplicationFeeAmount int64  `json:"application_fee_amount"`
	AmountRefunded       int64  `json:"amount_refunded"`
}

type stripePayout struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ArrivalDate int64  `json:"arrival_date"`
	Description string `json:"description"`
}

func (s *StripeConnector) ParseWebhook(body []byte, headers map[string]string) (*RawEventEnvelope, error) {
	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("invalid stripe payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("stripe payload missing type")
	}
	return &RawEventEnvelope{
		Provider:  ProviderStripe,
		EventType: event.Type,
		Payload:   body,
		Headers:   headers,
	}, nil
}

// Normalize maps Stripe event types onto canonical events. Customer and
// product lifecycle events have no ledger effect and are ignored by name.
func (s *StripeConnector) Normalize(envelope *RawEventEnvelope) ([]NormalizedEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return nil, fmt.Errorf("invalid stripe payload: %w", err)
	}
	occurredAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "charge.succeeded":
		return s.normalizeChargeSucceeded(event, occurredAt)
	case "charge.refunded":
		return s.normalizeChargeRefunded(event, occurredAt)
	case "payout.paid":
		return s.normalizePayoutPaid(event)
	case "customer.created", "customer.updated", "payment_intent.created", "invoice.finalized":
		return nil, nil
	default:
		return nil, &UnsupportedEventTypeError{Provider: ProviderStripe, EventType: event.Type}
	}
}

func (s *StripeConnector) normalizeChargeSucceeded(event stripeEvent, occurredAt time.Time) ([]NormalizedEvent, error) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, fmt.Errorf("invalid stripe charge object: %w", err)
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("stripe charge missing id")
	}

	orderID := charge.Metadata.OrderID
	if orderID == "" {
		orderID = charge.ID
	}
	currency := strings.ToUpper(defaultCurrency(charge.Currency))
	customerID := charge.Customer
	if customerID == "" {
		customerID = customerExternalID(charge.BillingDetails.Email, "")
	}

	order := NormalizedEvent{
		DomainType:  "order",
		ExternalRef: orderID,
		OccurredAt:  occurredAt,
		Order: &OrderData{
			ExternalOrderID:    orderID,
			CustomerExternalID: customerID,
			CustomerEmail:      strings.ToLower(strings.TrimSpace(charge.BillingDetails.Email)),
			CustomerName:       strings.TrimSpace(charge.BillingDetails.Name),
			ProductName:        strings.TrimSpace(charge.Description),
			Status:             "paid",
			GrossAmountCents:   charge.Amount,
			Currency:           currency,
		},
	}
	payment := NormalizedEvent{
		DomainType:  "payment",
		ExternalRef: charge.ID,
		OccurredAt:  occurredAt,
		Payment: &PaymentData{
			ExternalPaymentID: charge.ID,
			ExternalOrderID:   orderID,
			Status:            "paid",
			AmountCents:       charge.Amount,
			FeeCents:          charge.ApplicationFeeAmount,
			Currency:          currency,
			Method:            charge.PaymentMethodDetails.Type,
		},
	}
	return []NormalizedEvent{order, payment}, nil
}

func (s *StripeConnector) normalizeChargeRefunded(event stripeEvent, occurredAt time.Time) ([]NormalizedEvent, error) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, fmt.Errorf("invalid stripe charge object: %w", err)
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("stripe charge missing id")
	}
	orderID := charge.Metadata.OrderID
	if orderID == "" {
		orderID = charge.ID
	}
	amount := charge.AmountRefunded
	if amount == 0 {
		amount = charge.Amount
	}
	return []NormalizedEvent{{
		DomainType:  "refund",
		ExternalRef: charge.ID,
		OccurredAt:  occurredAt,
		Refund: &RefundData{
			ExternalPaymentID: charge.ID,
			ExternalOrderID:   orderID,
			AmountCents:       amount,
			Currency:          strings.ToUpper(defaultCurrency(charge.Currency)),
		},
	}}, nil
}

func (s *StripeConnector) normalizePayoutPaid(event stripeEvent) ([]NormalizedEvent, error) {
	var payout stripePayout
	if err := json.Unmarshal(event.Data.Object, &payout); err != nil {
		return nil, fmt.Errorf("invalid stripe payout object: %w", err)
	}
	if payout.ID == "" {
		return nil, fmt.Errorf("stripe payout missing id")
	}
	arrival := time.Unix(payout.ArrivalDate, 0).UTC()
	description := payout.Description
	if description == "" {
		description = "stripe payout " + payout.ID
	}
	return []NormalizedEvent{{
		DomainType:  "payout",
		ExternalRef: payout.ID,
		OccurredAt:  arrival,
		Payout: &PayoutData{
			ExternalPayoutID: payout.ID,
			GrossAmountCents: payout.Amount,
			NetAmountCents:   payout.Amount,
			Currency:         strings.ToUpper(defaultCurrency(payout.Currency)),
			PayoutDate:       arrival.Format("2006-01-02"),
			Description:      description,
		},
	}}, nil
}
