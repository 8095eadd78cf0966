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

const maxBidMessageLen = 5000

// errLostRace signals that the conditional job update matched no row after
// the preconditions had passed inside the same transaction.
var errLostRace = errors.New("job changed during bid")

// BidInput is a freelancer's quote.  Amount is in pence.
type BidInput struct {
	Amount  int64
	Message string
}

type BidService struct {
	db    *sql.DB
	users *repository.UserRepo
	jobs  *repository.JobRepo
	bids  *repository.BidRepo
	pub   queue.Publisher
	log   *zap.Logger

	// beforeRecord runs inside the bid transaction just before the job
	// counter update.  Nil outside tests.
	beforeRecord func(ctx context.Context, tx *sql.Tx, jobID string) error
}

func NewBidService(db *sql.DB, users *repository.UserRepo, jobs *repository.JobRepo, bids *repository.BidRepo,
	pub queue.Publisher, log *zap.Logger) *BidService {
	return &BidService{db: db, users: users, jobs: jobs, bids: bids, pub: pub, log: log}
}

// Submit places a bid.  Preconditions are checked in order and the first
// failure is returned:
//
//  1. caller exists and may bid (not a pure client, not the job's owner)
//  2. job is open
//  3. job is below its bid cap
//  4. caller has not bid on the job yet
//
// The bid insert and the job counter update commit together.  The counter
// update is conditional on the job still being open and below its cap, so
// concurrent submissions can never push current_bids past max_bids.
func (s *BidService) Submit(ctx context.Context, professionalID, jobID string, in BidInput) (*model.Bid, error) {
	in.Message = strings.TrimSpace(in.Message)
	if in.Amount <= 0 {
		return nil, validation("amount must be positive")
	}
	if utf8.RuneCountInString(in.Message) > maxBidMessageLen {
		return nil, validation("message must be at most %d characters", maxBidMessageLen)
	}

	u, err := s.users.GetByID(ctx, professionalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, translate(err)
	}
	if !u.CanBid() {
		return nil, ErrUnauthorized
	}

	b := &model.Bid{
		JobID:          jobID,
		ProfessionalID: professionalID,
		Amount:         in.Amount,
		Message:        in.Message,
		Status:         model.BidPending,
	}
	var (
		job    *model.Job
		closed bool
	)
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		j, err := s.jobs.GetByIDTx(ctx, tx, jobID)
		if err != nil {
			return err
		}
		job = j
		if j.ClientID == professionalID {
			return ErrUnauthorized
		}
		if err := bidsAccepted(j); err != nil {
			return err
		}
		exists, err := s.bids.ExistsTx(ctx, tx, jobID, professionalID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateBid
		}
		if err := s.bids.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		if s.beforeRecord != nil {
			if err := s.beforeRecord(ctx, tx, jobID); err != nil {
				return err
			}
		}
		accepted, filled, err := s.jobs.RecordBidTx(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !accepted {
			return errLostRace
		}
		closed = filled
		return nil
	})
	if errors.Is(err, errLostRace) {
		err = s.reclassify(ctx, jobID)
	}
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info("bid submitted", zap.String("bid_id", b.ID), zap.String("job_id", jobID),
		zap.String("professional_id", professionalID))
	publish(ctx, s.pub, s.log, queue.Event{Type: queue.BidSubmitted, UserID: professionalID,
		JobID: jobID, BidID: b.ID, Amount: b.Amount})
	if closed {
		s.log.Info("job closed", zap.String("job_id", jobID))
		publish(ctx, s.pub, s.log, queue.Event{Type: queue.JobClosed, UserID: job.ClientID,
			JobID: jobID, JobTitle: job.Title})
	}
	return b, nil
}

// bidsAccepted applies preconditions 2 and 3.  A job that closed because it
// filled up reports the cap rather than a generic closure.
func bidsAccepted(j *model.Job) error {
	full := j.CurrentBids >= j.MaxBids
	switch {
	case j.Status == model.JobClosed && full:
		return ErrBidCapReached
	case j.Status != model.JobOpen:
		return ErrJobClosed
	case full:
		return ErrBidCapReached
	}
	return nil
}

// reclassify explains a lost compare-and-swap from the job's current row.
func (s *BidService) reclassify(ctx context.Context, jobID string) error {
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := bidsAccepted(j); err != nil {
		return err
	}
	return ErrBidCapReached
}

// ListByJob returns the bids placed on a job.
func (s *BidService) ListByJob(ctx context.Context, jobID string) ([]model.Bid, error) {
	out, err := s.bids.ListByJob(ctx, jobID)
	return out, translate(err)
}

// ListByProfessional returns a freelancer's bids with their job titles.
func (s *BidService) ListByProfessional(ctx context.Context, professionalID string) ([]model.ProfessionalBid, error) {
	out, err := s.bids.ListByProfessional(ctx, professionalID)
	return out, translate(err)
}
