package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

func TestMockProvider_CreateAndGet(t *testing.T) {
	m := NewMockProvider()
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()
	req := CheckoutRequest{
		Package:    model.CreditPackage{ID: "credits_25", Name: "25 Credits", Credits: 25, Price: 1000},
		UserID:     "u-1",
		SuccessURL: "http://localhost/success",
	}

	s, err := m.CreateCheckoutSession(ctx, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID != "cs_test_mock_1700000000000_credits_25" {
		t.Fatalf("id = %q", s.ID)
	}
	again, err := m.CreateCheckoutSession(ctx, req)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if again.ID == s.ID || !strings.HasPrefix(again.ID, s.ID) {
		t.Fatalf("second id = %q", again.ID)
	}

	got, err := m.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PaymentStatus != StatusPaid || got.AmountTotal != 1000 || got.Currency != Currency {
		t.Fatalf("session = %+v", got)
	}
	want := map[string]string{"userId": "u-1", "packageId": "credits_25", "credits": "25"}
	for k, v := range want {
		if got.Metadata[k] != v {
			t.Fatalf("metadata[%s] = %q, want %q", k, got.Metadata[k], v)
		}
	}
}

func TestMockProvider_UnknownSession(t *testing.T) {
	_, err := NewMockProvider().GetSession(context.Background(), "cs_missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
}
