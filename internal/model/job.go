package model

import "time"

// Job statuses.  A job moves open -> closed when its bid cap is reached;
// closed -> completed happens outside this service.
const (
    JobOpen      = "open"
    JobClosed    = "closed"
    JobCompleted = "completed"
)

// Fixed job posting parameters.
const (
    JobCostCredits = 5
    JobMaxBids     = 3
)

// Job is a row of the `jobs` table.  Budgets are stored in minor units (pence).
type Job struct {
    ID          string    `json:"id"`
    ClientID    string    `json:"client_id"`
    Title       string    `json:"title"`
    Description string    `json:"description"`
    BudgetMin   int64     `json:"budget_min"`
    BudgetMax   int64     `json:"budget_max"`
    CostCredits int       `json:"cost_credits"`
    Status      string    `json:"status"`
    MaxBids     int       `json:"max_bids"`
    CurrentBids int       `json:"current_bids"`
    CreatedAt   time.Time `json:"created_at"`
    UpdatedAt   time.Time `json:"updated_at"`
}

// AcceptsBids reports whether the job is open and below its cap.
func (j Job) AcceptsBids() bool { return j.Status == JobOpen && j.CurrentBids < j.MaxBids }
