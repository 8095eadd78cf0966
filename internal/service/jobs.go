package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
	"github.com/yhwh80/freelance-marketplace/internal/repository"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 10000
	defaultPageSize   = 20
	maxPageSize       = 100
)

// JobInput is a client's job posting request.  Budgets are in pence.
type JobInput struct {
	Title       string
	Description string
	BudgetMin   int64
	BudgetMax   int64
}

func (in *JobInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Title == "":
		return validation("title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLen:
		return validation("title must be at most %d characters", maxTitleLen)
	case in.Description == "":
		return validation("description is required")
	case utf8.RuneCountInString(in.Description) > maxDescriptionLen:
		return validation("description must be at most %d characters", maxDescriptionLen)
	case in.BudgetMin <= 0:
		return validation("budget_min must be positive")
	case in.BudgetMin > in.BudgetMax:
		return validation("budget_min must not exceed budget_max")
	}
	return nil
}

type JobService struct {
	db     *sql.DB
	users  *repository.UserRepo
	jobs   *repository.JobRepo
	ledger *Ledger
	pub    queue.Publisher
	log    *zap.Logger
}

func NewJobService(db *sql.DB, users *repository.UserRepo, jobs *repository.JobRepo, ledger *Ledger,
	pub queue.Publisher, log *zap.Logger) *JobService {
	return &JobService{db: db, users: users, jobs: jobs, ledger: ledger, pub: pub, log: log}
}

// PostJob debits the posting cost from the client and creates an open job
// in one transaction, so a failed insert never leaves credits spent.
func (s *JobService) PostJob(ctx context.Context, clientID string, in JobInput) (*model.Job, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, translate(err)
	}
	if !u.CanPostJobs() {
		return nil, ErrUnauthorized
	}

	j := &model.Job{
		ClientID:    clientID,
		Title:       in.Title,
		Description: in.Description,
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		CostCredits: model.JobCostCredits,
		Status:      model.JobOpen,
		MaxBids:     model.JobMaxBids,
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.ledger.DebitTx(ctx, tx, clientID, j.CostCredits); err != nil {
			return err
		}
		return s.jobs.CreateTx(ctx, tx, j)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info("job posted", zap.String("job_id", j.ID), zap.String("client_id", clientID))
	publish(ctx, s.pub, s.log, queue.Event{Type: queue.JobPosted, UserID: clientID, JobID: j.ID, JobTitle: j.Title})
	return j, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	j, err := s.jobs.GetByID(ctx, id)
	return j, translate(err)
}

// List returns jobs newest first.  status is empty or one of the job
// statuses; limit is clamped to [1, 100] with a default of 20.
func (s *JobService) List(ctx context.Context, status string, limit, offset int) ([]model.Job, error) {
	switch status {
	case "", model.JobOpen, model.JobClosed, model.JobCompleted:
	default:
		return nil, validation("unknown status %q", status)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.jobs.List(ctx, status, limit, offset)
	return out, translate(err)
}

// ListByClient returns the jobs posted by clientID.
func (s *JobService) ListByClient(ctx context.Context, clientID string) ([]model.Job, error) {
	out, err := s.jobs.ListByClient(ctx, clientID)
	return out, translate(err)
}
