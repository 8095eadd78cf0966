package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// PaymentConfig carries the payment provider settings.  Price ids are keyed by
// credit package id (credits_10, credits_25, ...) and override the inline
// price data sent with a checkout request.
type PaymentConfig struct {
	SecretKey      string
	WebhookSecret  string
	PublishableKey string
	APIBase        string // alternate provider endpoint, e.g. a local stub
	SuccessURL     string
	CancelURL      string
	PriceIDs       map[string]string
}

// MockSecretKey switches checkout to the in-process stub provider.
const MockSecretKey = "sk_test_mock"

// MockMode reports whether payments are routed through the stub provider
// instead of the real one.
func (p PaymentConfig) MockMode() bool {
	return p.SecretKey == MockSecretKey || p.APIBase != ""
}

// LoadPaymentConfig reads STRIPE_* variables.  Outside prod a missing key
// falls back to mock mode so a development stack starts without provider
// credentials.  In prod the mock provider would report every session as
// paid, so a missing or mock key is an error.
func LoadPaymentConfig(env string) (PaymentConfig, error) {
	cfg := PaymentConfig{
		SecretKey:      strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		APIBase:        os.Getenv("STRIPE_API_BASE"),
		SuccessURL:     envStr("CHECKOUT_SUCCESS_URL", "http://localhost:3000/buy-credits/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:      envStr("CHECKOUT_CANCEL_URL", "http://localhost:3000/buy-credits?cancelled=true"),
		PriceIDs:       map[string]string{},
	}
	for _, n := range []string{"10", "25", "50", "100"} {
		if v := strings.TrimSpace(os.Getenv("STRIPE_PRICE_CREDITS_" + n)); v != "" {
			cfg.PriceIDs["credits_"+n] = v
		}
	}
	if env == "prod" {
		switch {
		case cfg.SecretKey == "":
			return cfg, errors.New("missing required env var: STRIPE_SECRET_KEY")
		case cfg.SecretKey == MockSecretKey:
			return cfg, fmt.Errorf("STRIPE_SECRET_KEY=%s is not allowed when APP_ENV=prod", MockSecretKey)
		}
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = MockSecretKey
	}
	return cfg, nil
}
