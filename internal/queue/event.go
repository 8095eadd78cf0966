// Package queue defines the marketplace events exchanged over RabbitMQ, the
// publisher used by the services and the audit consumer.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// Routing keys on the marketplace exchange.
const (
	JobPosted        = "job.posted"
	JobClosed        = "job.closed"
	BidSubmitted     = "bid.submitted"
	CreditsPurchased = "credits.purchased"
)

// Event is published after the transaction that produced it has committed.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	JobID      string    `json:"job_id,omitempty"`
	JobTitle   string    `json:"job_title,omitempty"`
	BidID      string    `json:"bid_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Credits    int       `json:"credits,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Line renders the event as one audit log line.
func (e Event) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user_id=%s", e.OccurredAt.UTC().Format(time.RFC3339), e.Type, e.UserID)
	if e.JobID != "" {
		fmt.Fprintf(&b, " | job_id=%s", e.JobID)
	}
	if e.JobTitle != "" {
		fmt.Fprintf(&b, " | title=%q", e.JobTitle)
	}
	if e.BidID != "" {
		fmt.Fprintf(&b, " | bid_id=%s", e.BidID)
	}
	if e.Amount != 0 {
		fmt.Fprintf(&b, " | amount=%d pence", e.Amount)
	}
	if e.Credits != 0 {
		fmt.Fprintf(&b, " | credits=%d", e.Credits)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " | session_id=%s", e.SessionID)
	}
	b.WriteByte('\n')
	return b.String()
}
