// Package service holds the marketplace's transactional rules: the credit
// ledger, the job and bid lifecycle, and payment completion.  Handlers map
// the sentinel errors below to HTTP statuses.
package service

import (
	"errors"
	"fmt"

	"github.com/yhwh80/freelance-marketplace/internal/repository"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnauthorized        = errors.New("not allowed")
	ErrJobClosed           = errors.New("job is not open for bids")
	ErrBidCapReached       = errors.New("job has reached its bid limit")
	ErrDuplicateBid        = errors.New("you have already bid on this job")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrNotFound            = errors.New("not found")
	ErrInvalidPackage      = errors.New("invalid package")
	ErrDuplicateEvent      = errors.New("payment event already processed")
	ErrUpstream            = errors.New("upstream failure")
)

// validation wraps ErrValidation with a user-facing reason.
func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps storage errors onto the domain taxonomy.  Anything the
// repository layer does not name is an upstream failure.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInsufficientCredits):
		return ErrInsufficientCredits
	case errors.Is(err, repository.ErrDuplicateBid):
		return ErrDuplicateBid
	case errors.Is(err, repository.ErrDuplicateEvent):
		return ErrDuplicateEvent
	}
	for _, known := range []error{ErrValidation, ErrInsufficientCredits, ErrUnauthorized, ErrJobClosed,
		ErrBidCapReached, ErrDuplicateBid, ErrInvalidSignature, ErrNotFound, ErrInvalidPackage,
		ErrDuplicateEvent, ErrUpstream} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
