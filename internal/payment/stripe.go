package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/config"
)

// StripeProvider talks to Stripe Checkout through a single API client built
// at startup.
type StripeProvider struct {
	sc  *client.API
	log *zap.Logger
}

// NewStripeProvider builds the client.  When cfg.APIBase is set every call
// goes to that endpoint instead of api.stripe.com (stripe-mock, a local stub).
func NewStripeProvider(cfg config.PaymentConfig, log *zap.Logger) *StripeProvider {
	var backends *stripe.Backends
	if cfg.APIBase != "" {
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{URL: stripe.String(cfg.APIBase)}),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{URL: stripe.String(cfg.APIBase)}),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{URL: stripe.String(cfg.APIBase)}),
		}
	}
	return &StripeProvider{sc: client.New(cfg.SecretKey, backends), log: log}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if req.Package.PriceID != "" {
		item.Price = stripe.String(req.Package.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(req.Package.Name),
				Description: stripe.String("Purchase " + strconv.Itoa(req.Package.Credits) + " credits for job posting"),
			},
			UnitAmount: stripe.Int64(req.Package.Price),
		}
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes:  stripe.StringSlice([]string{"card"}),
		LineItems:           []*stripe.CheckoutSessionLineItemParams{item},
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range req.Metadata() {
		params.AddMetadata(k, v)
	}

	s, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		p.log.Error("stripe: create checkout session", zap.String("package_id", req.Package.ID), zap.Error(err))
		return nil, err
	}
	return fromStripe(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.sc.CheckoutSessions.Get(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return fromStripe(s), nil
}

func fromStripe(s *stripe.CheckoutSession) *Session {
	md := make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		md[k] = v
	}
	return &Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      md,
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
