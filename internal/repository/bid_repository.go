package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

// BidRepo provides data access to the bids table.  The unique index on
// (job_id, professional_id) is what finally guarantees one bid per
// professional per job; ExistsTx only gives an early, friendlier answer.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a new BidRepo bound to the given database.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

// CreateTx inserts b within the caller's transaction.  A second bid by the
// same professional on the same job yields ErrDuplicateBid.
func (r *BidRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Bid) error {
	b.ID = uuid.NewString()
	b.CreatedAt = now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bids (id, job_id, professional_id, amount, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.JobID, b.ProfessionalID, b.Amount, b.Message, b.Status, b.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateBid
		}
		return err
	}
	return nil
}

// ExistsTx reports whether the professional already bid on the job.
func (r *BidRepo) ExistsTx(ctx context.Context, tx *sql.Tx, jobID, professionalID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE job_id = ? AND professional_id = ?`,
		jobID, professionalID).Scan(&n)
	return n > 0, err
}

// ListByJob returns the job's bids newest first.
func (r *BidRepo) ListByJob(ctx context.Context, jobID string) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_id, professional_id, amount, message, status, created_at
		 FROM bids WHERE job_id = ? ORDER BY created_at DESC, id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Bid{}
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.JobID, &b.ProfessionalID, &b.Amount, &b.Message, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByProfessional returns a professional's bids joined with their jobs.
func (r *BidRepo) ListByProfessional(ctx context.Context, professionalID string) ([]model.ProfessionalBid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.job_id, b.professional_id, b.amount, b.message, b.status, b.created_at,
		        j.title, j.status
		 FROM bids b
		 JOIN jobs j ON j.id = b.job_id
		 WHERE b.professional_id = ?
		 ORDER BY b.created_at DESC, b.id`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProfessionalBid{}
	for rows.Next() {
		var pb model.ProfessionalBid
		if err := rows.Scan(&pb.ID, &pb.JobID, &pb.ProfessionalID, &pb.Amount, &pb.Message, &pb.Status,
			&pb.CreatedAt, &pb.JobTitle, &pb.JobStatus); err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}
