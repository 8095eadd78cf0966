package repository

import (
	"context"
	"database/sql"

	"github.com/yhwh80/freelance-marketplace/internal/model"
)

// PaymentEventRepo stores the provider events that have already credited
// the ledger.
type PaymentEventRepo struct{ db *sql.DB }

func NewPaymentEventRepo(db *sql.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

// RecordTx claims ev.EventID.  It returns ErrDuplicateEvent when the id was
// recorded before, in which case the caller must not credit again.
func (r *PaymentEventRepo) RecordTx(ctx context.Context, tx *sql.Tx, ev *model.PaymentEvent) error {
	ev.CreatedAt = now()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO payment_events (event_id, session_id, user_id, credits, created_at) VALUES (?,?,?,?,?)",
		ev.EventID, ev.SessionID, ev.UserID, ev.Credits, ev.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

// ListByUser returns the user's credited purchases newest first.
func (r *PaymentEventRepo) ListByUser(ctx context.Context, userID string) ([]model.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT event_id, session_id, user_id, credits, created_at FROM payment_events WHERE user_id=? ORDER BY created_at DESC, event_id",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PaymentEvent{}
	for rows.Next() {
		var ev model.PaymentEvent
		if err := rows.Scan(&ev.EventID, &ev.SessionID, &ev.UserID, &ev.Credits, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
