package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

const userColumns = "id,email,name,password_hash,role,credits,created_at,updated_at"

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u, assigning its ID and timestamps.  Email is normalized.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Credits, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// DebitTx subtracts amount from the user's credits in a single conditional
// update, so two concurrent debits can never both pass a stale balance check.
// It returns ErrInsufficientCredits when the balance is too low and
// ErrNotFound when the user does not exist.
func (r *UserRepo) DebitTx(ctx context.Context, tx *sql.Tx, id string, amount int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET credits = credits - ?, updated_at = ? WHERE id = ? AND credits >= ?",
		amount, now(), id, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetByIDTx(ctx, tx, id); err != nil {
		return err
	}
	return ErrInsufficientCredits
}

// CreditTx adds amount to the user's credits.  It returns ErrNotFound when
// the user does not exist.
func (r *UserRepo) CreditTx(ctx context.Context, tx *sql.Tx, id string, amount int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?",
		amount, now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Balance returns the user's current credits.
func (r *UserRepo) Balance(ctx context.Context, id string) (int, error) {
	var credits int
	err := r.db.QueryRowContext(ctx, "SELECT credits FROM users WHERE id=?", id).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return credits, err
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
