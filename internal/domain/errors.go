package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services. Callers match them with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("monthly offer quota exceeded")

	// ErrIllegalTransition is returned for any status change outside the lifecycle table.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrCancellationWindowClosed is an ErrIllegalTransition: the acceptance is permanent.
	ErrCancellationWindowClosed = fmt.Errorf("%w: cancellation window has closed", ErrIllegalTransition)

	ErrTokenInvalid = errors.New("offer link is invalid")
	ErrTokenExpired = errors.New("offer link has expired")

	ErrDocumentStoreDisabled = errors.New("document store is disabled")
)

// IllegalTransition builds an ErrIllegalTransition naming both statuses.
func IllegalTransition(from, to OfferStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
