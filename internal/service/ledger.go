package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/repository"
)

// Ledger owns user credit balances.  The stored balance is the only record;
// payment events are kept solely to make provider credits idempotent.
type Ledger struct {
	db     *sql.DB
	users  *repository.UserRepo
	events *repository.PaymentEventRepo
	log    *zap.Logger
}

func NewLedger(db *sql.DB, users *repository.UserRepo, events *repository.PaymentEventRepo, log *zap.Logger) *Ledger {
	return &Ledger{db: db, users: users, events: events, log: log}
}

// Debit removes amount from the user's balance, failing with
// ErrInsufficientCredits rather than going below zero.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return validation("debit amount must be positive")
	}
	return translate(withTx(ctx, l.db, func(tx *sql.Tx) error {
		return l.users.DebitTx(ctx, tx, userID, amount)
	}))
}

// DebitTx is Debit inside a transaction owned by the caller.
func (l *Ledger) DebitTx(ctx context.Context, tx *sql.Tx, userID string, amount int) error {
	if amount <= 0 {
		return validation("debit amount must be positive")
	}
	return translate(l.users.DebitTx(ctx, tx, userID, amount))
}

// Credit adds amount to the user's balance.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return validation("credit amount must be positive")
	}
	return translate(withTx(ctx, l.db, func(tx *sql.Tx) error {
		return l.users.CreditTx(ctx, tx, userID, amount)
	}))
}

// PaymentCredit is a completed provider payment to apply to the ledger.
type PaymentCredit struct {
	EventID   string
	SessionID string
	UserID    string
	Credits   int
}

// ApplyPayment credits a completed payment exactly once per provider event
// id.  The event row and the balance change commit together; a replayed
// event returns ErrDuplicateEvent and changes nothing.
func (l *Ledger) ApplyPayment(ctx context.Context, p PaymentCredit) error {
	if p.EventID == "" || p.UserID == "" || p.Credits <= 0 {
		return validation("payment credit needs event id, user id and positive credits")
	}
	return translate(withTx(ctx, l.db, func(tx *sql.Tx) error {
		if err := l.events.RecordTx(ctx, tx, &model.PaymentEvent{
			EventID:   p.EventID,
			SessionID: p.SessionID,
			UserID:    p.UserID,
			Credits:   p.Credits,
		}); err != nil {
			return err
		}
		return l.users.CreditTx(ctx, tx, p.UserID, p.Credits)
	}))
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	n, err := l.users.Balance(ctx, userID)
	return n, translate(err)
}

// Purchases lists the payments credited to the user.
func (l *Ledger) Purchases(ctx context.Context, userID string) ([]model.PaymentEvent, error) {
	out, err := l.events.ListByUser(ctx, userID)
	return out, translate(err)
}
