// Package payment wraps the hosted checkout provider.  The rest of the
// service only sees Provider and Event; provider SDK types stay in here.
package payment

import (
	"context"
	"errors"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

// Currency of every catalog price.
const Currency = "gbp"

// Payment status reported by the provider once the money has been captured.
const StatusPaid = "paid"

var (
	// ErrSessionNotFound is returned by GetSession for an unknown id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrInvalidSignature is returned when a webhook payload cannot be
	// authenticated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Session is the provider-owned checkout session, reduced to the fields the
// marketplace reads.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// CheckoutRequest describes one purchase attempt of a catalog package.
type CheckoutRequest struct {
	Package    model.CreditPackage
	UserID     string
	SuccessURL string
	CancelURL  string
}

// Metadata is what the webhook later reads back from the completed session.
func (r CheckoutRequest) Metadata() map[string]string {
	return map[string]string{
		"userId":    r.UserID,
		"packageId": r.Package.ID,
		"credits":   itoa(r.Package.Credits),
	}
}

// Provider creates and retrieves checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}
