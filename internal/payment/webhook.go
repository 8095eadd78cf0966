package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types the marketplace reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// Event is a verified provider notification.  Session is set only for
// checkout events.  Malformed is set when the signature was valid but the
// body could not be decoded; such events carry whatever fields did decode.
type Event struct {
	ID        string
	Type      string
	Session   *Session
	Malformed error
}

// ParseWebhook authenticates payload against the Stripe-Signature header
// and decodes it.  Only authentication failures, including an empty header
// or secret, are returned as errors, always wrapping ErrInvalidSignature.
func ParseWebhook(payload []byte, sigHeader, secret string) (*Event, error) {
	if sigHeader == "" || secret == "" {
		return nil, ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(payload, sigHeader, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return &Event{Malformed: fmt.Errorf("decode event: %w", err)}, nil
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutCompleted {
		if ev.Data == nil {
			out.Malformed = errors.New("checkout event without data")
			return out, nil
		}
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			out.Malformed = fmt.Errorf("decode checkout session: %w", err)
			return out, nil
		}
		out.Session = fromStripe(&s)
	}
	return out, nil
}
