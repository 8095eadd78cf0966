// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let the service layer distinguish
// storage outcomes without inspecting driver errors.
package repository

import (
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when signing up with a taken email.
var ErrEmailExists = errors.New("email already exists")

// ErrInsufficientCredits is returned when a debit would take a balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrDuplicateBid is returned when a professional already bid on the job.
var ErrDuplicateBid = errors.New("duplicate bid")

// ErrDuplicateEvent is returned when a payment event id was already recorded.
var ErrDuplicateEvent = errors.New("payment event already processed")

// isDuplicateKey reports whether err is a unique/primary key violation on
// either supported driver.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// now returns the current UTC time truncated to the DATETIME resolution.
func now() time.Time { return time.Now().UTC().Truncate(time.Second) }
