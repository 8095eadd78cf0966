package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
)

func TestSubmitBid_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	both := env.signup(t, "b@example.com", model.RoleBoth)
	f1 := env.signup(t, "f1@example.com", model.RoleFreelancer)
	f2 := env.signup(t, "f2@example.com", model.RoleFreelancer)

	open := env.postJob(t, client.ID)
	own := env.postJob(t, both.ID)
	if _, err := env.bids.Submit(ctx, f1.ID, open.ID, BidInput{Amount: 60000}); err != nil {
		t.Fatalf("seed bid: %v", err)
	}
	closed := env.postJob(t, client.ID)
	if _, err := env.db.ExecContext(ctx, "UPDATE jobs SET status='closed' WHERE id=?", closed.ID); err != nil {
		t.Fatal(err)
	}
	// open status but counter at cap: only reachable through direct writes,
	// still rejected by rule 3.
	capped := env.postJob(t, client.ID)
	if _, err := env.db.ExecContext(ctx, "UPDATE jobs SET current_bids=max_bids WHERE id=?", capped.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		user    string
		job     string
		in      BidInput
		wantErr error
	}{
		{"client role", client.ID, open.ID, BidInput{Amount: 1}, ErrUnauthorized},
		{"unknown user", "nobody", open.ID, BidInput{Amount: 1}, ErrUnauthorized},
		{"own job", both.ID, own.ID, BidInput{Amount: 1}, ErrUnauthorized},
		{"closed job before duplicate", f1.ID, closed.ID, BidInput{Amount: 1}, ErrJobClosed},
		{"cap reached", f2.ID, capped.ID, BidInput{Amount: 1}, ErrBidCapReached},
		{"duplicate", f1.ID, open.ID, BidInput{Amount: 1}, ErrDuplicateBid},
		{"missing job", f2.ID, "missing", BidInput{Amount: 1}, ErrNotFound},
		{"zero amount", f2.ID, open.ID, BidInput{Amount: 0}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.bids.Submit(ctx, tt.user, tt.job, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	j, _ := env.jobs.Get(ctx, open.ID)
	if j.CurrentBids != 1 {
		t.Fatalf("current_bids = %d after rejected bids", j.CurrentBids)
	}
}

func TestSubmitBid_ClosesExactlyAtCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	job := env.postJob(t, client.ID)

	for i := 1; i <= model.JobMaxBids; i++ {
		f := env.signup(t, fmt.Sprintf("f%d@example.com", i), model.RoleFreelancer)
		b, err := env.bids.Submit(ctx, f.ID, job.ID, BidInput{Amount: 55000, Message: "  can start Monday "})
		if err != nil {
			t.Fatalf("bid %d: %v", i, err)
		}
		if b.Status != model.BidPending || b.Message != "can start Monday" {
			t.Fatalf("bid = %+v", b)
		}
		j, _ := env.jobs.Get(ctx, job.ID)
		wantStatus := model.JobOpen
		if i == model.JobMaxBids {
			wantStatus = model.JobClosed
		}
		if j.CurrentBids != i || j.Status != wantStatus {
			t.Fatalf("after bid %d: current=%d status=%s", i, j.CurrentBids, j.Status)
		}
	}

	types := env.pub.types()
	if last := types[len(types)-1]; last != queue.JobClosed {
		t.Fatalf("events = %v", types)
	}
	bids, err := env.bids.ListByJob(ctx, job.ID)
	if err != nil || len(bids) != model.JobMaxBids {
		t.Fatalf("ListByJob = %d, %v", len(bids), err)
	}
}

func TestSubmitBid_ConcurrentNeverExceedsCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	job := env.postJob(t, client.ID)

	const bidders = 12
	ids := make([]string, bidders)
	for i := range ids {
		ids[i] = env.signup(t, fmt.Sprintf("f%d@example.com", i), model.RoleFreelancer).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.bids.Submit(ctx, id, job.ID, BidInput{Amount: 40000})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrJobClosed), errors.Is(err, ErrBidCapReached):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if accepted != model.JobMaxBids {
		t.Fatalf("accepted = %d, want %d", accepted, model.JobMaxBids)
	}
	j, _ := env.jobs.Get(ctx, job.ID)
	if j.CurrentBids != j.MaxBids || j.Status != model.JobClosed {
		t.Fatalf("job = %+v", j)
	}
	bids, _ := env.bids.ListByJob(ctx, job.ID)
	if len(bids) != model.JobMaxBids {
		t.Fatalf("stored bids = %d", len(bids))
	}
}

func TestSubmitBid_ConcurrentDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	f := env.signup(t, "f@example.com", model.RoleFreelancer)
	job := env.postJob(t, client.ID)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bids.Submit(ctx, f.ID, job.ID, BidInput{Amount: 40000})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrDuplicateBid) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("accepted = %d, want 1", ok)
	}
	mine, _ := env.bids.ListByProfessional(ctx, f.ID)
	if len(mine) != 1 || mine[0].JobTitle != job.Title {
		t.Fatalf("ListByProfessional = %+v", mine)
	}
}

// New client signs up with 25 credits, posts a job, three freelancers bid
// and the fourth is turned away.
func TestScenario_JobFillsUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "client@example.com", model.RoleClient)
	if got := env.balance(t, client.ID); got != 25 {
		t.Fatalf("starting balance = %d", got)
	}

	job := env.postJob(t, client.ID)
	if got := env.balance(t, client.ID); got != 20 {
		t.Fatalf("balance after post = %d", got)
	}
	if job.Status != model.JobOpen || job.CurrentBids != 0 {
		t.Fatalf("job = %+v", job)
	}

	for i := 1; i <= 3; i++ {
		f := env.signup(t, fmt.Sprintf("pro%d@example.com", i), model.RoleFreelancer)
		if _, err := env.bids.Submit(ctx, f.ID, job.ID, BidInput{Amount: int64(60000 + i)}); err != nil {
			t.Fatalf("bid %d: %v", i, err)
		}
	}
	j, _ := env.jobs.Get(ctx, job.ID)
	if j.Status != model.JobClosed || j.CurrentBids != 3 {
		t.Fatalf("job after 3 bids = %+v", j)
	}

	fourth := env.signup(t, "pro4@example.com", model.RoleFreelancer)
	_, err := env.bids.Submit(ctx, fourth.ID, job.ID, BidInput{Amount: 59000})
	if !errors.Is(err, ErrBidCapReached) {
		t.Fatalf("fourth bid err = %v, want ErrBidCapReached", err)
	}
	if got := env.balance(t, fourth.ID); got != model.FreelancerStartingCredits {
		t.Fatalf("bidding changed balance: %d", got)
	}
}

// A bid whose conditional counter update misses, because the job moved on
// after it was read, is rolled back and reported from the job's state.
func TestSubmitBid_LostUpdateIsRolledBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	f := env.signup(t, "f@example.com", model.RoleFreelancer)
	job := env.postJob(t, client.ID)
	before := len(env.pub.types())

	env.bids.beforeRecord = func(ctx context.Context, tx *sql.Tx, jobID string) error {
		_, err := tx.ExecContext(ctx, "UPDATE jobs SET current_bids = max_bids WHERE id = ?", jobID)
		return err
	}
	if _, err := env.bids.Submit(ctx, f.ID, job.ID, BidInput{Amount: 1000}); !errors.Is(err, ErrBidCapReached) {
		t.Fatalf("err = %v, want ErrBidCapReached", err)
	}

	j, err := env.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if j.CurrentBids != 0 || j.Status != model.JobOpen {
		t.Fatalf("job = %+v, want untouched", j)
	}
	if bids, _ := env.bids.ListByJob(ctx, job.ID); len(bids) != 0 {
		t.Fatalf("bids = %d, want insert rolled back", len(bids))
	}
	if got := env.pub.types(); len(got) != before {
		t.Fatalf("events = %v", got)
	}
}

func TestReclassify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)

	tests := []struct {
		name    string
		update  string
		wantErr error
	}{
		{"filled", "UPDATE jobs SET status='closed', current_bids=max_bids WHERE id=?", ErrBidCapReached},
		{"closed below cap", "UPDATE jobs SET status='closed' WHERE id=?", ErrJobClosed},
		{"completed", "UPDATE jobs SET status='completed' WHERE id=?", ErrJobClosed},
		{"still open", "UPDATE jobs SET updated_at=updated_at WHERE id=?", ErrBidCapReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := env.postJob(t, client.ID)
			if _, err := env.db.ExecContext(ctx, tt.update, job.ID); err != nil {
				t.Fatal(err)
			}
			if err := env.bids.reclassify(ctx, job.ID); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// job.closed follows the row the update wrote, not the read taken at the
// start of the transaction.
func TestSubmitBid_ClosedEventAfterConcurrentBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signup(t, "c@example.com", model.RoleClient)
	f := env.signup(t, "f@example.com", model.RoleFreelancer)
	job := env.postJob(t, client.ID)

	env.bids.beforeRecord = func(ctx context.Context, tx *sql.Tx, jobID string) error {
		_, err := tx.ExecContext(ctx, "UPDATE jobs SET current_bids = max_bids - 1 WHERE id = ?", jobID)
		return err
	}
	if _, err := env.bids.Submit(ctx, f.ID, job.ID, BidInput{Amount: 1000}); err != nil {
		t.Fatal(err)
	}
	types := env.pub.types()
	if last := types[len(types)-1]; last != queue.JobClosed {
		t.Fatalf("events = %v, want job.closed last", types)
	}
	if j, _ := env.jobs.Get(ctx, job.ID); j.Status != model.JobClosed || j.CurrentBids != j.MaxBids {
		t.Fatalf("job = %+v", j)
	}
}
