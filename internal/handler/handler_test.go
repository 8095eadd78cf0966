package handler_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/config"
	"github.com/yhwh80/freelance-marketplace/internal/database"
	"github.com/yhwh80/freelance-marketplace/internal/handler"
	"github.com/yhwh80/freelance-marketplace/internal/payment"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
	"github.com/yhwh80/freelance-marketplace/internal/repository"
	"github.com/yhwh80/freelance-marketplace/internal/router"
	"github.com/yhwh80/freelance-marketplace/internal/service"
)

const (
	jwtSecret     = "handler-test-secret"
	webhookSecret = "whsec_handler_test"
)

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite"); err != nil {
		t.Fatal(err)
	}

	log := zap.NewNop()
	cfg := config.Config{JWTSecret: jwtSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	pcfg := config.PaymentConfig{SecretKey: config.MockSecretKey, WebhookSecret: webhookSecret, PublishableKey: "pk_test_x"}
	pub := queue.NopPublisher{}

	users := repository.NewUserRepo(db)
	jobsRepo := repository.NewJobRepo(db)
	ledger := service.NewLedger(db, users, repository.NewPaymentEventRepo(db), log)
	jobs := service.NewJobService(db, users, jobsRepo, ledger, pub, log)
	bids := service.NewBidService(db, users, jobsRepo, repository.NewBidRepo(db), pub, log)
	payments := service.NewPaymentService(payment.NewMockProvider(), ledger, service.NewCatalog(nil), pcfg, pub, log)

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db), log),
		Jobs:     handler.NewJobHandler(jobs, bids, log),
		Account:  handler.NewAccountHandler(users, jobs, bids, ledger, log),
		Payments: handler.NewPaymentHandler(payments, pcfg.PublishableKey, log),
		Ready:    handler.Ready(db, nil),
	}, router.Middleware{}, jwtSecret)
	return &api{t: t, e: e}
}

func (a *api) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body, err)
		}
	}
	return rec.Code, out
}

type account struct {
	id      string
	token   string
	refresh string
}

func (a *api) register(email, role string) account {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "name": "Test", "role": role,
	})
	if status != http.StatusCreated {
		a.t.Fatalf("register %s: %d %v", email, status, body)
	}
	user := body["user"].(map[string]any)
	return account{
		id:      user["id"].(string),
		token:   body["access"].(map[string]any)["token"].(string),
		refresh: body["refresh"].(map[string]any)["token"].(string),
	}
}

func (a *api) credits(acc account) int {
	a.t.Helper()
	status, body := a.do(http.MethodGet, "/me", acc.token, nil)
	if status != http.StatusOK {
		a.t.Fatalf("/me: %d %v", status, body)
	}
	return int(body["credits"].(float64))
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	acc := a.register("Client@Example.com", "client")
	if got := a.credits(acc); got != 25 {
		t.Fatalf("client starting credits = %d", got)
	}
	if got := a.credits(a.register("pro@example.com", "freelancer")); got != 10 {
		t.Fatalf("freelancer starting credits = %d", got)
	}

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
	}{
		{"duplicate email", "/auth/register", map[string]string{"email": "client@example.com", "password": "correct-horse", "role": "client"}, http.StatusConflict},
		{"bad role", "/auth/register", map[string]string{"email": "x@example.com", "password": "correct-horse", "role": "admin"}, http.StatusBadRequest},
		{"short password", "/auth/register", map[string]string{"email": "y@example.com", "password": "short", "role": "client"}, http.StatusBadRequest},
		{"bad email", "/auth/register", map[string]string{"email": "nope", "password": "correct-horse", "role": "client"}, http.StatusBadRequest},
		{"wrong password", "/auth/login", map[string]string{"email": "client@example.com", "password": "wrong-horse"}, http.StatusUnauthorized},
		{"unknown email", "/auth/login", map[string]string{"email": "ghost@example.com", "password": "correct-horse"}, http.StatusUnauthorized},
		{"login", "/auth/login", map[string]string{"email": "CLIENT@example.com", "password": "correct-horse"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(http.MethodPost, tt.path, "", tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if status >= 400 && body["error"] == nil {
				t.Fatalf("error body missing: %v", body)
			}
		})
	}

	status, body := a.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": acc.refresh})
	if status != http.StatusOK {
		t.Fatalf("refresh: %d %v", status, body)
	}
	if status, _ := a.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": acc.refresh}); status != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: %d", status)
	}
	rotated := body["refresh"].(map[string]any)["token"].(string)
	if status, _ := a.do(http.MethodPost, "/auth/logout", "", map[string]string{"refresh_token": rotated}); status != http.StatusNoContent {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := a.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": rotated}); status != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", status)
	}
}

func TestJobBoard(t *testing.T) {
	a := newAPI(t)
	client := a.register("client@example.com", "client")
	pros := []account{
		a.register("p1@example.com", "freelancer"),
		a.register("p2@example.com", "freelancer"),
		a.register("p3@example.com", "both"),
		a.register("p4@example.com", "freelancer"),
	}

	job := map[string]any{"title": "Kitchen refit", "description": "Full refit", "budget_min": 300000, "budget_max": 500000}
	if status, _ := a.do(http.MethodPost, "/jobs", "", job); status != http.StatusUnauthorized {
		t.Fatalf("anonymous post: %d", status)
	}
	if status, _ := a.do(http.MethodPost, "/jobs", pros[0].token, job); status != http.StatusForbidden {
		t.Fatalf("freelancer post: %d", status)
	}
	if status, body := a.do(http.MethodPost, "/jobs", client.token, map[string]any{"title": "x", "description": "y", "budget_min": 9, "budget_max": 1}); status != http.StatusBadRequest {
		t.Fatalf("inverted budget: %d %v", status, body)
	}

	status, body := a.do(http.MethodPost, "/jobs", client.token, job)
	if status != http.StatusCreated || body["status"] != "open" || body["current_bids"].(float64) != 0 {
		t.Fatalf("post job: %d %v", status, body)
	}
	jobID := body["id"].(string)
	if got := a.credits(client); got != 20 {
		t.Fatalf("credits after post = %d", got)
	}

	bidPath := "/jobs/" + jobID + "/bids"
	if status, _ := a.do(http.MethodPost, bidPath, client.token, map[string]any{"amount": 1000}); status != http.StatusForbidden {
		t.Fatalf("client bid: %d", status)
	}
	if status, _ := a.do(http.MethodPost, bidPath, pros[0].token, map[string]any{"amount": 0}); status != http.StatusBadRequest {
		t.Fatalf("zero bid: %d", status)
	}
	for i, p := range pros[:3] {
		if status, body := a.do(http.MethodPost, bidPath, p.token, map[string]any{"amount": 400000 + i, "message": "available"}); status != http.StatusCreated {
			t.Fatalf("bid %d: %d %v", i+1, status, body)
		}
		if i == 0 {
			if status, body := a.do(http.MethodPost, bidPath, p.token, map[string]any{"amount": 1}); status != http.StatusConflict {
				t.Fatalf("duplicate bid: %d %v", status, body)
			}
		}
	}
	status, body = a.do(http.MethodPost, bidPath, pros[3].token, map[string]any{"amount": 1})
	if status != http.StatusConflict || body["error"] != service.ErrBidCapReached.Error() {
		t.Fatalf("fourth bid: %d %v", status, body)
	}

	status, body = a.do(http.MethodGet, "/jobs/"+jobID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("get job: %d", status)
	}
	if j := body["job"].(map[string]any); j["status"] != "closed" || j["current_bids"].(float64) != 3 {
		t.Fatalf("job = %v", j)
	}
	if n := len(body["bids"].([]any)); n != 3 {
		t.Fatalf("bids = %d", n)
	}
	if status, _ := a.do(http.MethodGet, "/jobs/nope", "", nil); status != http.StatusNotFound {
		t.Fatalf("missing job: %d", status)
	}

	status, body = a.do(http.MethodGet, "/jobs?status=open", "", nil)
	if status != http.StatusOK || len(body["items"].([]any)) != 0 {
		t.Fatalf("open jobs: %d %v", status, body)
	}
	if status, _ := a.do(http.MethodGet, "/jobs?status=weird", "", nil); status != http.StatusBadRequest {
		t.Fatalf("bad status filter: %d", status)
	}

	if status, body := a.do(http.MethodGet, "/me/jobs", client.token, nil); status != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("/me/jobs: %d %v", status, body)
	}
	status, body = a.do(http.MethodGet, "/me/bids", pros[2].token, nil)
	if status != http.StatusOK {
		t.Fatalf("/me/bids: %d", status)
	}
	items := body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["job_title"] != "Kitchen refit" {
		t.Fatalf("/me/bids items = %v", items)
	}
	if status, _ := a.do(http.MethodGet, "/me/bids", client.token, nil); status != http.StatusForbidden {
		t.Fatalf("client /me/bids: %d", status)
	}
}

func TestInsufficientCredits(t *testing.T) {
	a := newAPI(t)
	client := a.register("client@example.com", "client")
	job := map[string]any{"title": "t", "description": "d", "budget_min": 1, "budget_max": 1}
	for i := 0; i < 5; i++ {
		if status, _ := a.do(http.MethodPost, "/jobs", client.token, job); status != http.StatusCreated {
			t.Fatalf("post %d: %d", i+1, status)
		}
	}
	status, body := a.do(http.MethodPost, "/jobs", client.token, job)
	if status != http.StatusPaymentRequired || body["error"] != service.ErrInsufficientCredits.Error() {
		t.Fatalf("sixth post: %d %v", status, body)
	}
}

func TestCheckoutEndpoints(t *testing.T) {
	a := newAPI(t)
	acc := a.register("buyer@example.com", "client")

	tests := []struct {
		name   string
		token  string
		body   map[string]string
		status int
	}{
		{"no token", "", map[string]string{"packageId": "credits_10", "userId": acc.id}, http.StatusUnauthorized},
		{"missing package", acc.token, map[string]string{"userId": acc.id}, http.StatusBadRequest},
		{"missing user", acc.token, map[string]string{"packageId": "credits_10"}, http.StatusBadRequest},
		{"unknown package", acc.token, map[string]string{"packageId": "credits_11", "userId": acc.id}, http.StatusBadRequest},
		{"other user", acc.token, map[string]string{"packageId": "credits_10", "userId": "someone"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(http.MethodPost, "/checkout-session", tt.token, tt.body)
			if status != tt.status || body["error"] == nil {
				t.Fatalf("status = %d (%v), want %d", status, body, tt.status)
			}
		})
	}

	status, body := a.do(http.MethodPost, "/checkout-session", acc.token, map[string]string{"packageId": "credits_25", "userId": acc.id})
	if status != http.StatusOK {
		t.Fatalf("checkout: %d %v", status, body)
	}
	sessionID := body["sessionId"].(string)

	status, body = a.do(http.MethodPost, "/verify-payment", acc.token, map[string]string{"sessionId": sessionID})
	if status != http.StatusOK || body["verified"] != true || body["amount"].(float64) != 1000 || body["currency"] != "gbp" {
		t.Fatalf("verify: %d %v", status, body)
	}
	if status, _ := a.do(http.MethodPost, "/verify-payment", acc.token, map[string]string{"sessionId": "cs_nope"}); status != http.StatusNotFound {
		t.Fatalf("verify unknown: %d", status)
	}

	status, body = a.do(http.MethodGet, "/credit-packages", "", nil)
	if status != http.StatusOK || len(body["packages"].([]any)) != 4 || body["publishable_key"] != "pk_test_x" {
		t.Fatalf("packages: %d %v", status, body)
	}
}

func webhookPayload(t *testing.T, eventID, userID, credits string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id": eventID, "object": "event", "type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id": "cs_" + eventID, "object": "checkout.session", "payment_status": "paid",
			"amount_total": 1000, "currency": "gbp",
			"metadata": map[string]string{"userId": userID, "packageId": "credits_25", "credits": credits},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestPaymentWebhook(t *testing.T) {
	a := newAPI(t)
	acc := a.register("buyer@example.com", "client")
	payload := webhookPayload(t, "evt_paid", acc.id, "25")

	if status, body := a.do(http.MethodPost, "/payment-webhook", "", payload); status != http.StatusBadRequest || body["error"] == nil {
		t.Fatalf("unsigned: %d %v", status, body)
	}
	if status, _ := a.do(http.MethodPost, "/payment-webhook", "", payload, "Stripe-Signature", stripeSignature(payload, "whsec_wrong")); status != http.StatusBadRequest {
		t.Fatalf("wrong secret: %d", status)
	}
	if got := a.credits(acc); got != 25 {
		t.Fatalf("credits after rejected webhooks = %d", got)
	}

	for i := 0; i < 2; i++ {
		status, body := a.do(http.MethodPost, "/payment-webhook", "", payload, "Stripe-Signature", stripeSignature(payload, webhookSecret))
		if status != http.StatusOK || body["received"] != true {
			t.Fatalf("delivery %d: %d %v", i+1, status, body)
		}
	}
	if got := a.credits(acc); got != 50 {
		t.Fatalf("credits after replayed webhook = %d, want 50", got)
	}

	bad := webhookPayload(t, "evt_bad", acc.id, "")
	if status, _ := a.do(http.MethodPost, "/payment-webhook", "", bad, "Stripe-Signature", stripeSignature(bad, webhookSecret)); status != http.StatusOK {
		t.Fatalf("malformed metadata should be acknowledged: %d", status)
	}

	numeric := []byte(`{"id":"evt_numeric","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_numeric","object":"checkout.session","payment_status":"paid","metadata":{"userId":"` + acc.id + `","credits":25}}}}`)
	if status, body := a.do(http.MethodPost, "/payment-webhook", "", numeric, "Stripe-Signature", stripeSignature(numeric, webhookSecret)); status != http.StatusOK || body["received"] != true {
		t.Fatalf("undecodable signed event should be acknowledged: %d %v", status, body)
	}
	if got := a.credits(acc); got != 50 {
		t.Fatalf("credits after undecodable event = %d, want 50", got)
	}

	status, body := a.do(http.MethodGet, "/me/purchases", acc.token, nil)
	if status != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("purchases: %d %v", status, body)
	}
}

func TestProbes(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body)
	}
	if status, body := a.do(http.MethodGet, "/readyz", "", nil); status != http.StatusOK || body["database"] != "ok" {
		t.Fatalf("readyz: %d %v", status, body)
	}
}

func TestValidatorRoleTag(t *testing.T) {
	type signup struct {
		Role string `validate:"required,role"`
	}
	v := handler.NewValidator()
	for _, role := range []string{"client", "freelancer", "both"} {
		if err := v.Validate(signup{Role: role}); err != nil {
			t.Fatalf("role %q: %v", role, err)
		}
	}
	for _, role := range []string{"admin", "Client", "client "} {
		err := v.Validate(signup{Role: role})
		if err == nil || !strings.Contains(err.Error(), "role must be one of") {
			t.Fatalf("role %q: err = %v", role, err)
		}
	}
	if err := v.Validate(signup{}); err == nil || err.Error() != "role is required" {
		t.Fatalf("empty role: err = %v", err)
	}
}
