package payment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is the in-process stub used when STRIPE_SECRET_KEY is
// sk_test_mock.  Checkout redirects straight to the success page, so every
// session it creates reports as paid.
type MockProvider struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMockProvider() *MockProvider {
	return &MockProvider{sessions: map[string]*Session{}, now: time.Now}
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("cs_test_mock_%d_%s", m.now().UnixMilli(), req.Package.ID)
	if _, taken := m.sessions[id]; taken {
		id = fmt.Sprintf("%s_%d", id, len(m.sessions))
	}
	s := &Session{
		ID:            id,
		URL:           req.SuccessURL,
		Status:        "complete",
		PaymentStatus: StatusPaid,
		AmountTotal:   req.Package.Price,
		Currency:      Currency,
		Metadata:      req.Metadata(),
	}
	m.sessions[id] = s
	cp := *s
	return &cp, nil
}

func (m *MockProvider) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}
