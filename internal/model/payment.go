package model

import "time"

// PaymentEvent records a provider event that has credited the ledger.  The
// event id is the primary key, which makes webhook replays a no-op.
type PaymentEvent struct {
    EventID   string    `json:"event_id"`
    SessionID string    `json:"session_id"`
    UserID    string    `json:"user_id"`
    Credits   int       `json:"credits"`
    CreatedAt time.Time `json:"created_at"`
}

// CreditPackage is one entry of the fixed purchase catalog.  Price is in
// minor units of Currency.
type CreditPackage struct {
    ID      string `json:"id"`
    Name    string `json:"name"`
    Credits int    `json:"credits"`
    Price   int64  `json:"price"`
    Popular bool   `json:"popular"`
    PriceID string `json:"-"`
}
