package model

import "time"

// Role values stored in users.role.  A "both" account may post jobs and bid.
const (
    RoleClient     = "client"
    RoleFreelancer = "freelancer"
    RoleBoth       = "both"
)

// Starting credit grants applied at signup.
const (
    ClientStartingCredits     = 25
    FreelancerStartingCredits = 10
)

// User represents an application user record as stored in the `users`
// table.  Credits is the user's whole ledger: there is no separate balance
// table, and the column is never allowed below zero.
type User struct {
    ID           string    `json:"id"`
    Email        string    `json:"email"`
    Name         string    `json:"name"`
    PasswordHash string    `json:"-"`
    Role         string    `json:"role"`
    Credits      int       `json:"credits"`
    CreatedAt    time.Time `json:"created_at"`
    UpdatedAt    time.Time `json:"updated_at"`
}

// CanPostJobs reports whether the role may create jobs.
func (u User) CanPostJobs() bool { return u.Role == RoleClient || u.Role == RoleBoth }

// CanBid reports whether the role may submit bids.
func (u User) CanBid() bool { return u.Role == RoleFreelancer || u.Role == RoleBoth }

// ValidRole reports whether r is an accepted users.role value.
func ValidRole(r string) bool {
    switch r {
    case RoleClient, RoleFreelancer, RoleBoth:
        return true
    }
    return false
}

// StartingCredits returns the signup grant for a role.  "both" accounts get
// the client grant because they can spend it on job posts.
func StartingCredits(role string) int {
    if role == RoleFreelancer {
        return FreelancerStartingCredits
    }
    return ClientStartingCredits
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
    ID        string     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
