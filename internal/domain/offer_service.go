package domain

import (
	"context"
	"time"
)

// SendOptions are the optional inputs of a send. A nil Validity uses the configured default.
type SendOptions struct {
	RecipientEmail *string
	Validity       *LinkValidity
}

// SideEffectOutcome records a best-effort step of the send orchestration.
// Failure is empty when the step succeeded or was not attempted.
type SideEffectOutcome struct {
	Attempted bool   `json:"attempted"`
	Failure   string `json:"failure,omitempty"`
}

// Succeeded reports whether the step was attempted and did not fail.
func (o SideEffectOutcome) Succeeded() bool {
	return o.Attempted && o.Failure == ""
}

// SendResult is the outcome of a send. Side-effect failures are reported here, never as errors.
// swagger:model SendResult
type SendResult struct {
	OfferID          string            `json:"offer_id"`
	Status           OfferStatus       `json:"status"`
	AlreadySent      bool              `json:"already_sent"`
	DocumentURL      *string           `json:"document_url"`
	NotificationSent bool              `json:"notification_sent"`
	Document         SideEffectOutcome `json:"document"`
	Notification     SideEffectOutcome `json:"notification"`
	// Link is set only on the call that performed the transition.
	Link *IssuedLink `json:"link,omitempty"`
}

// PublicOffer is what an unauthenticated recipient sees through a link.
// swagger:model PublicOffer
type PublicOffer struct {
	Title      string       `json:"title"`
	SenderName string       `json:"sender_name"`
	Status     OfferStatus  `json:"status"`
	Currency   string       `json:"currency"`
	NetTotal   string       `json:"net_total"`
	VATTotal   string       `json:"vat_total"`
	GrossTotal string       `json:"gross_total"`
	SentAt     *time.Time   `json:"sent_at,omitempty"`
	ValidUntil *time.Time   `json:"valid_until,omitempty"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
	Items      []*OfferItem `json:"items"`
	// CanAct is true when the request carried a valid accept token and the offer awaits a decision.
	CanAct bool `json:"can_act"`
	// CanUndo is true when the request carried a valid accept token and the acceptance
	// is still inside the cancellation window.
	CanUndo bool `json:"can_undo"`
}

// OfferService is the offer lifecycle engine as seen by the delivery layer.
type OfferService interface {
	CreateDraft(ctx context.Context, ownerID string, input DraftInput) (*Offer, error)
	SaveDraft(ctx context.Context, offerID, ownerID string, input DraftInput) (*Offer, error)
	DeleteDraft(ctx context.Context, offerID, ownerID string) error
	GetOffer(ctx context.Context, offerID, ownerID string) (*Offer, error)
	ListOffers(ctx context.Context, ownerID string, filter OfferListFilter, params PaginationParams) ([]*Offer, int, error)
	QuotaStatus(ctx context.Context, ownerID string) (*QuotaStatus, error)

	Send(ctx context.Context, offerID, ownerID string, opts SendOptions) (*SendResult, error)
	Withdraw(ctx context.Context, offerID, ownerID string) (*Offer, error)
	CancelAcceptance(ctx context.Context, offerID, ownerID string) (*Offer, error)
	ReissueLink(ctx context.Context, offerID, ownerID string, validity *LinkValidity) (*IssuedLink, error)

	Open(ctx context.Context, publicToken, acceptToken string) (*PublicOffer, error)
	Accept(ctx context.Context, publicToken, acceptToken string) (OfferStatus, error)
	Reject(ctx context.Context, publicToken, acceptToken string) (OfferStatus, error)
	UndoAcceptance(ctx context.Context, publicToken, acceptToken string) (OfferStatus, error)

	Expire(ctx context.Context, offerID string) (OfferStatus, error)
	ExpireOverdue(ctx context.Context) (int, error)
}
