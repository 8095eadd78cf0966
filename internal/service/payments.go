package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/config"
	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/payment"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
)

// CheckoutInput is the body of a checkout request.
type CheckoutInput struct {
	PackageID string
	UserID    string
}

// Verification is the outcome of checking a checkout session.  When the
// session is not paid only Status is set.
type Verification struct {
	Verified bool              `json:"verified"`
	Amount   int64             `json:"amount,omitempty"`
	Currency string            `json:"currency,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Status   string            `json:"status,omitempty"`
}

type PaymentService struct {
	provider payment.Provider
	ledger   *Ledger
	catalog  Catalog
	cfg      config.PaymentConfig
	pub      queue.Publisher
	log      *zap.Logger
}

func NewPaymentService(provider payment.Provider, ledger *Ledger, catalog Catalog, cfg config.PaymentConfig,
	pub queue.Publisher, log *zap.Logger) *PaymentService {
	return &PaymentService{provider: provider, ledger: ledger, catalog: catalog, cfg: cfg, pub: pub, log: log}
}

// Packages returns the catalog.
func (s *PaymentService) Packages() []model.CreditPackage { return s.catalog.Packages() }

// Checkout opens a provider session for a catalog package.  Nothing is
// stored locally; the session metadata carries the user and credits back
// through the webhook.
func (s *PaymentService) Checkout(ctx context.Context, callerID string, in CheckoutInput) (string, error) {
	in.PackageID = strings.TrimSpace(in.PackageID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.PackageID == "" || in.UserID == "" {
		return "", validation("missing packageId or userId")
	}
	pkg, ok := s.catalog.Lookup(in.PackageID)
	if !ok {
		return "", ErrInvalidPackage
	}
	if in.UserID != callerID {
		return "", ErrUnauthorized
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Package:    pkg,
		UserID:     in.UserID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return "", translate(err)
	}
	s.log.Info("checkout session created", zap.String("session_id", sess.ID),
		zap.String("user_id", in.UserID), zap.String("package_id", pkg.ID))
	return sess.ID, nil
}

// Verify reports whether a checkout session has been paid.  It does not
// credit the ledger; only the webhook does.
func (s *PaymentService) Verify(ctx context.Context, callerID, sessionID string) (Verification, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Verification{}, validation("missing sessionId")
	}
	sess, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return Verification{}, ErrNotFound
		}
		return Verification{}, translate(err)
	}
	if owner := sess.Metadata["userId"]; owner != "" && owner != callerID {
		return Verification{}, ErrUnauthorized
	}
	if sess.PaymentStatus != payment.StatusPaid {
		return Verification{Verified: false, Status: sess.PaymentStatus}, nil
	}
	return Verification{
		Verified: true,
		Amount:   sess.AmountTotal,
		Currency: sess.Currency,
		Metadata: sess.Metadata,
	}, nil
}

// HandleWebhook authenticates and applies one provider notification.
//
// Signed events that cannot be applied (unpaid, bad metadata, unknown user,
// replayed id) are logged and acknowledged so the provider stops retrying.
// Only storage failures are returned, letting the provider redeliver; the
// event id makes that redelivery safe.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	ev, err := payment.ParseWebhook(payload, sigHeader, s.cfg.WebhookSecret)
	if err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		return ErrInvalidSignature
	}
	log := s.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if ev.Malformed != nil {
		log.Warn("signed webhook could not be decoded, skipping", zap.Error(ev.Malformed))
		return nil
	}

	switch ev.Type {
	case payment.EventCheckoutCompleted:
		return s.completeCheckout(ctx, log, ev)
	case payment.EventPaymentFailed:
		log.Warn("payment failed")
	default:
		log.Info("unhandled event type")
	}
	return nil
}

func (s *PaymentService) completeCheckout(ctx context.Context, log *zap.Logger, ev *payment.Event) error {
	sess := ev.Session
	if sess == nil || sess.PaymentStatus != payment.StatusPaid {
		log.Info("checkout completed without payment, skipping")
		return nil
	}
	log = log.With(zap.String("session_id", sess.ID))
	userID := sess.Metadata["userId"]
	credits, err := strconv.Atoi(sess.Metadata["credits"])
	if userID == "" || err != nil || credits <= 0 {
		log.Warn("checkout metadata missing userId or credits, skipping",
			zap.String("user_id", userID), zap.String("credits", sess.Metadata["credits"]))
		return nil
	}

	err = s.ledger.ApplyPayment(ctx, PaymentCredit{
		EventID:   ev.ID,
		SessionID: sess.ID,
		UserID:    userID,
		Credits:   credits,
	})
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		log.Info("payment event already applied")
		return nil
	case errors.Is(err, ErrNotFound):
		log.Warn("payment for unknown user, skipping", zap.String("user_id", userID))
		return nil
	case err != nil:
		log.Error("applying payment failed", zap.Error(err))
		return translate(err)
	}

	log.Info("credits added", zap.String("user_id", userID), zap.Int("credits", credits))
	publish(ctx, s.pub, s.log, queue.Event{Type: queue.CreditsPurchased, UserID: userID,
		Credits: credits, SessionID: sess.ID})
	return nil
}
