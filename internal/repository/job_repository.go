package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

const jobColumns = `id, client_id, title, description, budget_min, budget_max, cost_credits,
	status, max_bids, current_bids, created_at, updated_at`

// JobRepo provides data access to the jobs table.
type JobRepo struct {
	db *sql.DB
}

// NewJobRepo returns a new JobRepo bound to the given database.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// CreateTx inserts j within the caller's transaction, assigning its ID and
// timestamps.  Status, caps and counters are written exactly as given.
func (r *JobRepo) CreateTx(ctx context.Context, tx *sql.Tx, j *model.Job) error {
	j.ID = uuid.NewString()
	j.CreatedAt = now()
	j.UpdatedAt = j.CreatedAt
	_, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ClientID, j.Title, j.Description, j.BudgetMin, j.BudgetMax, j.CostCredits,
		j.Status, j.MaxBids, j.CurrentBids, j.CreatedAt, j.UpdatedAt)
	return err
}

// GetByID returns the job or ErrNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	return scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *JobRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Job, error) {
	return scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// List returns jobs newest first.  An empty status lists every job.
func (r *JobRepo) List(ctx context.Context, status string, limit, offset int) ([]model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return r.query(ctx, q, args...)
}

// ListByClient returns the client's own jobs newest first.
func (r *JobRepo) ListByClient(ctx context.Context, clientID string) ([]model.Job, error) {
	return r.query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE client_id = ? ORDER BY created_at DESC, id`, clientID)
}

// RecordBidTx applies the bid transition in one conditional statement:
// current_bids is incremented and status becomes closed when the increment
// reaches max_bids.  The WHERE clause is the compare-and-swap guard; accepted
// is false when the job was no longer open or already at its cap.  closed
// reports whether this bid was the one that filled the job, read back inside
// tx so it reflects the row the UPDATE wrote rather than an earlier snapshot.
//
// status is assigned before current_bids because MySQL evaluates
// assignments left to right against the updated row.
func (r *JobRepo) RecordBidTx(ctx context.Context, tx *sql.Tx, jobID string) (accepted, closed bool, err error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs
		 SET status = CASE WHEN current_bids + 1 >= max_bids THEN 'closed' ELSE status END,
		     current_bids = current_bids + 1,
		     updated_at = ?
		 WHERE id = ? AND status = 'open' AND current_bids < max_bids`,
		now(), jobID)
	if err != nil {
		return false, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	if n != 1 {
		return false, false, nil
	}
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, jobID).Scan(&status); err != nil {
		return false, false, err
	}
	return true, status == model.JobClosed, nil
}

func (r *JobRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Job{}
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.BudgetMin, &j.BudgetMax,
			&j.CostCredits, &j.Status, &j.MaxBids, &j.CurrentBids, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.BudgetMin, &j.BudgetMax,
		&j.CostCredits, &j.Status, &j.MaxBids, &j.CurrentBids, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}
