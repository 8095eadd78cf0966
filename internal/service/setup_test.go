package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/config"
	"github.com/yhwh80/freelance-marketplace/internal/database"
	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/payment"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
	"github.com/yhwh80/freelance-marketplace/internal/repository"
)

const webhookSecret = "whsec_service_test"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type testEnv struct {
	db       *sql.DB
	users    *repository.UserRepo
	jobsRepo *repository.JobRepo
	ledger   *Ledger
	jobs     *JobService
	bids     *BidService
	payments *PaymentService
	provider *payment.MockProvider
	pub      *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	pub := &recordingPublisher{}
	users := repository.NewUserRepo(db)
	jobs := repository.NewJobRepo(db)
	bids := repository.NewBidRepo(db)
	events := repository.NewPaymentEventRepo(db)
	ledger := NewLedger(db, users, events, log)
	provider := payment.NewMockProvider()
	cfg := config.PaymentConfig{SecretKey: config.MockSecretKey, WebhookSecret: webhookSecret,
		SuccessURL: "http://localhost/success", CancelURL: "http://localhost/cancel"}

	return &testEnv{
		db:       db,
		users:    users,
		jobsRepo: jobs,
		ledger:   ledger,
		jobs:     NewJobService(db, users, jobs, ledger, pub, log),
		bids:     NewBidService(db, users, jobs, bids, pub, log),
		payments: NewPaymentService(provider, ledger, NewCatalog(nil), cfg, pub, log),
		provider: provider,
		pub:      pub,
	}
}

// signup mirrors registration: the role's starting grant is the opening
// balance.
func (e *testEnv) signup(t *testing.T, email, role string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "hash", Role: role, Credits: model.StartingCredits(role)}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return u
}

func (e *testEnv) balance(t *testing.T, userID string) int {
	t.Helper()
	n, err := e.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return n
}

func (e *testEnv) postJob(t *testing.T, clientID string) *model.Job {
	t.Helper()
	j, err := e.jobs.PostJob(context.Background(), clientID, JobInput{
		Title: "Build a garden shed", Description: "3x2m, timber", BudgetMin: 50000, BudgetMax: 80000,
	})
	if err != nil {
		t.Fatalf("post job: %v", err)
	}
	return j
}

// signedCheckoutEvent builds a checkout.session.completed payload and a
// valid Stripe-Signature header for it.
func signedCheckoutEvent(t *testing.T, eventID, paymentStatus string, metadata any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   payment.EventCheckoutCompleted,
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_test_" + eventID,
			"object":         "checkout.session",
			"status":         "complete",
			"payment_status": paymentStatus,
			"amount_total":   1000,
			"currency":       "gbp",
			"metadata":       metadata,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return payload, signPayload(payload, webhookSecret)
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
