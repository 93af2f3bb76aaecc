package services

import (
	"time"

	"quoteflow/internal/domain"
)

// DefaultCancellationWindow is how long after acceptance the acceptance may be undone.
const DefaultCancellationWindow = 10 * time.Minute

// legalTransitions is the complete lifecycle table. Anything absent is illegal.
var legalTransitions = map[domain.OfferStatus][]domain.OfferStatus{
	domain.OfferStatusDraft:    {domain.OfferStatusSent, domain.OfferStatusWithdrawn},
	domain.OfferStatusSent:     {domain.OfferStatusViewed, domain.OfferStatusAccepted, domain.OfferStatusRejected, domain.OfferStatusExpired, domain.OfferStatusWithdrawn},
	domain.OfferStatusViewed:   {domain.OfferStatusAccepted, domain.OfferStatusRejected, domain.OfferStatusExpired},
	domain.OfferStatusAccepted: {domain.OfferStatusSent},
}

// Lifecycle holds the transition rules of an offer.
type Lifecycle struct {
	cancellationWindow time.Duration
}

// NewLifecycle returns the lifecycle rules; a non-positive window uses DefaultCancellationWindow.
func NewLifecycle(cancellationWindow time.Duration) Lifecycle {
	if cancellationWindow <= 0 {
		cancellationWindow = DefaultCancellationWindow
	}
	return Lifecycle{cancellationWindow: cancellationWindow}
}

// CanTransition reports whether from -> to appears in the lifecycle table.
func (l Lifecycle) CanTransition(from, to domain.OfferStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Check returns an ErrIllegalTransition when from -> to is not in the table.
func (l Lifecycle) Check(from, to domain.OfferStatus) error {
	if !l.CanTransition(from, to) {
		return domain.IllegalTransition(from, to)
	}
	return nil
}

// CanCancel reports whether an acceptance made at acceptedAt may still be undone at now.
// The window is half-open: exactly cancellationWindow after acceptance it has closed.
func (l Lifecycle) CanCancel(acceptedAt, now time.Time) bool {
	return now.Sub(acceptedAt) < l.cancellationWindow
}

// CheckUndo validates ACCEPTED -> SENT for offer at now.
func (l Lifecycle) CheckUndo(offer *domain.Offer, now time.Time) error {
	if err := l.Check(offer.Status, domain.OfferStatusSent); err != nil {
		return err
	}
	if offer.AcceptedAt == nil || !l.CanCancel(*offer.AcceptedAt, now) {
		return domain.ErrCancellationWindowClosed
	}
	return nil
}
