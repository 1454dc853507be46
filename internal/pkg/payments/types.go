package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tillpoint/tillpoint/app/models"
)

// EventChargeSuccess is the only webhook event type that drives a subscription
// transition; everything else is acknowledged and ignored.
const EventChargeSuccess = "charge.success"

// CheckoutInput is the normalized input for starting a checkout session.
type CheckoutInput struct {
	OrganizationID uint
	Email          string
	Amount         int64
	Currency       string
	Reference      string
	PlanID         string
	BillingCycle   string
	CallbackURL    string
}

// CheckoutSession is returned to the caller so it can redirect to the hosted
// payment page.
type CheckoutSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// ConfirmationResult is the outcome of reconciling one payment reference.
type ConfirmationResult struct {
	Payment      *models.Payment
	Subscription *models.Subscription
	// Applied is true when this call performed the terminal transition, false
	// when the reference was already terminal (duplicate delivery).
	Applied bool
}

// ChargeEvent is the provider-agnostic shape of a parsed webhook notification.
// The event itself carries the authoritative settlement outcome; the webhook
// path never re-verifies against the gateway.
type ChargeEvent struct {
	Event         string
	EventID       string
	Reference     string
	Status        string
	Amount        int64
	Currency      string
	TransactionID string
	PaidAt        *time.Time
}

// Succeeded reports whether the event signals a settled charge.
func (e *ChargeEvent) Succeeded() bool {
	return e != nil && e.Event == EventChargeSuccess && strings.EqualFold(e.Status, "success")
}

// ParseChargeEvent parses a raw Paystack webhook body into a ChargeEvent.
// The payload is parsed into a strict schema; unrecognized shapes are rejected
// instead of being accessed optimistically.
func ParseChargeEvent(payload []byte) (*ChargeEvent, error) {
	var raw struct {
		Event string `json:"event"`
		Data  struct {
			ID        int64  `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			PaidAt    string `json:"paid_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	event := strings.ToLower(strings.TrimSpace(raw.Event))
	if event == "" {
		return nil, errors.New("webhook payload missing event type")
	}

	out := &ChargeEvent{
		Event:     event,
		Reference: strings.TrimSpace(raw.Data.Reference),
		Status:    strings.ToLower(strings.TrimSpace(raw.Data.Status)),
		Amount:    raw.Data.Amount,
		Currency:  strings.TrimSpace(raw.Data.Currency),
	}
	if raw.Data.ID != 0 {
		out.EventID = fmt.Sprintf("%s:%d", event, raw.Data.ID)
		out.TransactionID = fmt.Sprintf("%d", raw.Data.ID)
	}
	if paidAt := strings.TrimSpace(raw.Data.PaidAt); paidAt != "" {
		if t, err := time.Parse(time.RFC3339, paidAt); err == nil {
			out.PaidAt = &t
		}
	}

	if strings.HasPrefix(event, "charge.") && out.Reference == "" {
		return nil, errors.New("charge webhook payload missing reference")
	}
	return out, nil
}
