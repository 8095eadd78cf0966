package database

import (
	"context"
	"database/sql"
	"fmt"
)

// mysqlSchema creates the marketplace tables on MySQL 8.  The credits CHECK is
// enforced from 8.0.16 onwards; the ledger never relies on it alone.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL,
		credits       INT          NOT NULL DEFAULT 0,
		created_at    DATETIME     NOT NULL,
		updated_at    DATETIME     NOT NULL,
		UNIQUE KEY uq_users_email (email),
		CONSTRAINT chk_users_credits CHECK (credits >= 0),
		CONSTRAINT chk_users_role CHECK (role IN ('client','freelancer','both'))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         CHAR(36)    NOT NULL PRIMARY KEY,
		user_id    CHAR(36)    NOT NULL,
		token_hash CHAR(64)    NOT NULL,
		expires_at DATETIME    NOT NULL,
		revoked_at DATETIME    NULL,
		created_at DATETIME    NOT NULL,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		client_id    CHAR(36)     NOT NULL,
		title        VARCHAR(255) NOT NULL,
		description  TEXT         NOT NULL,
		budget_min   BIGINT       NOT NULL,
		budget_max   BIGINT       NOT NULL,
		cost_credits INT          NOT NULL,
		status       VARCHAR(16)  NOT NULL DEFAULT 'open',
		max_bids     INT          NOT NULL,
		current_bids INT          NOT NULL DEFAULT 0,
		created_at   DATETIME     NOT NULL,
		updated_at   DATETIME     NOT NULL,
		KEY idx_jobs_status_created (status, created_at),
		KEY idx_jobs_client (client_id, created_at),
		CONSTRAINT fk_jobs_client FOREIGN KEY (client_id) REFERENCES users(id),
		CONSTRAINT chk_jobs_bids CHECK (current_bids <= max_bids),
		CONSTRAINT chk_jobs_budget CHECK (budget_min <= budget_max),
		CONSTRAINT chk_jobs_status CHECK (status IN ('open','closed','completed'))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bids (
		id              CHAR(36)    NOT NULL PRIMARY KEY,
		job_id          CHAR(36)    NOT NULL,
		professional_id CHAR(36)    NOT NULL,
		amount          BIGINT      NOT NULL,
		message         TEXT        NOT NULL,
		status          VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at      DATETIME    NOT NULL,
		UNIQUE KEY uq_bids_job_professional (job_id, professional_id),
		KEY idx_bids_professional (professional_id, created_at),
		CONSTRAINT fk_bids_job FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE,
		CONSTRAINT fk_bids_professional FOREIGN KEY (professional_id) REFERENCES users(id),
		CONSTRAINT chk_bids_status CHECK (status IN ('pending','accepted','rejected'))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		event_id   VARCHAR(255) NOT NULL PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL,
		user_id    CHAR(36)     NOT NULL,
		credits    INT          NOT NULL,
		created_at DATETIME     NOT NULL,
		KEY idx_payment_events_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// sqliteSchema mirrors mysqlSchema for local development and tests.  Columns
// holding timestamps are declared DATETIME so the driver scans them into
// time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT     NOT NULL PRIMARY KEY,
		email         TEXT     NOT NULL UNIQUE,
		name          TEXT     NOT NULL DEFAULT '',
		password_hash TEXT     NOT NULL,
		role          TEXT     NOT NULL CHECK (role IN ('client','freelancer','both')),
		credits       INTEGER  NOT NULL DEFAULT 0 CHECK (credits >= 0),
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         TEXT     NOT NULL PRIMARY KEY,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT     NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT     NOT NULL PRIMARY KEY,
		client_id    TEXT     NOT NULL REFERENCES users(id),
		title        TEXT     NOT NULL,
		description  TEXT     NOT NULL,
		budget_min   INTEGER  NOT NULL,
		budget_max   INTEGER  NOT NULL,
		cost_credits INTEGER  NOT NULL,
		status       TEXT     NOT NULL DEFAULT 'open' CHECK (status IN ('open','closed','completed')),
		max_bids     INTEGER  NOT NULL,
		current_bids INTEGER  NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL,
		CHECK (current_bids <= max_bids),
		CHECK (budget_min <= budget_max)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_client ON jobs (client_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id              TEXT     NOT NULL PRIMARY KEY,
		job_id          TEXT     NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		professional_id TEXT     NOT NULL REFERENCES users(id),
		amount          INTEGER  NOT NULL,
		message         TEXT     NOT NULL,
		status          TEXT     NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','rejected')),
		created_at      DATETIME NOT NULL,
		UNIQUE (job_id, professional_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bids_professional ON bids (professional_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		event_id   TEXT     NOT NULL PRIMARY KEY,
		session_id TEXT     NOT NULL,
		user_id    TEXT     NOT NULL,
		credits    INTEGER  NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_events_user ON payment_events (user_id)`,
}

// Migrate creates the schema for the given driver.  Every statement is
// idempotent, so it runs on each start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "mysql":
		stmts = mysqlSchema
	case "sqlite":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("database: no schema for driver %q", driver)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migration %d failed: %w", i, err)
		}
	}
	return nil
}
