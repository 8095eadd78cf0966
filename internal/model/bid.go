package model

import "time"

// Bid statuses.  Only pending is written here; acceptance and rejection are
// not part of this service.
const (
    BidPending  = "pending"
    BidAccepted = "accepted"
    BidRejected = "rejected"
)

// Bid is a freelancer's quote against a job.  (JobID, ProfessionalID) is
// unique.  Amount is in minor units.
type Bid struct {
    ID             string    `json:"id"`
    JobID          string    `json:"job_id"`
    ProfessionalID string    `json:"professional_id"`
    Amount         int64     `json:"amount"`
    Message        string    `json:"message"`
    Status         string    `json:"status"`
    CreatedAt      time.Time `json:"created_at"`
}

// ProfessionalBid is a bid joined with the job it targets, as listed on a
// freelancer's dashboard.
type ProfessionalBid struct {
    Bid
    JobTitle  string `json:"job_title"`
    JobStatus string `json:"job_status"`
}
