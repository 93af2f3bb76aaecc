package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus is the canonical lifecycle status of an Offer.
type OfferStatus string

const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusSent      OfferStatus = "sent"
	OfferStatusViewed    OfferStatus = "viewed"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// Valid reports whether s is one of the known statuses.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferStatusDraft, OfferStatusSent, OfferStatusViewed, OfferStatusAccepted,
		OfferStatusRejected, OfferStatusExpired, OfferStatusWithdrawn:
		return true
	}
	return false
}

// Terminal reports whether no recipient action can change s any more.
// ACCEPTED is terminal even though the cancellation window allows an undo.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferStatusAccepted, OfferStatusRejected, OfferStatusExpired, OfferStatusWithdrawn:
		return true
	}
	return false
}

// Final reports whether no transition leaves s. Only offers in a final status are safe
// to serve from a process-local cache, since any other status may be changed by another
// process.
func (s OfferStatus) Final() bool {
	switch s {
	case OfferStatusRejected, OfferStatusExpired, OfferStatusWithdrawn:
		return true
	}
	return false
}

// Awaiting reports whether the offer is out with the recipient and waiting for a decision.
func (s OfferStatus) Awaiting() bool {
	return s == OfferStatusSent || s == OfferStatusViewed
}

// QuotaConsumingStatuses are the statuses counted against the monthly send allowance.
// VIEWED is a refinement of SENT (the same sent offer, opened by the recipient), so it
// is counted with SENT rather than dropping the offer out of the count on first view.
var QuotaConsumingStatuses = []OfferStatus{
	OfferStatusSent,
	OfferStatusViewed,
	OfferStatusAccepted,
	OfferStatusRejected,
}

// Offer is a priced proposal sent from an account to a recipient.
// swagger:model Offer
type Offer struct {
	ID       string      `json:"id"`
	OwnerID  string      `json:"owner_id"`
	ClientID *string     `json:"client_id,omitempty"`
	Title    string      `json:"title"`
	Status   OfferStatus `json:"status"`

	Currency   string          `json:"currency"`
	NetTotal   decimal.Decimal `json:"net_total"`
	VATTotal   decimal.Decimal `json:"vat_total"`
	GrossTotal decimal.Decimal `json:"gross_total"`

	RecipientEmail *string `json:"recipient_email,omitempty"`
	EmailVerified  bool    `json:"email_verified"`

	// PublicToken is the view capability. AcceptTokenHash is the bcrypt hash of the
	// current accept capability; the plaintext accept token is only ever returned at issue time.
	PublicToken     *string `json:"public_token,omitempty"`
	AcceptTokenHash *string `json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	Items []*OfferItem `json:"items"`
}

// OfferItem is a line item owned exclusively by one Offer.
// swagger:model OfferItem
type OfferItem struct {
	ID           string          `json:"id"`
	OfferID      string          `json:"offer_id"`
	Position     int             `json:"position"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPriceNet decimal.Decimal `json:"unit_price_net"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	LineNetTotal decimal.Decimal `json:"line_net_total"`
}

// QuoteTotals is the monetary snapshot derived from an offer's items.
type QuoteTotals struct {
	Net   decimal.Decimal `json:"net_total"`
	VAT   decimal.Decimal `json:"vat_total"`
	Gross decimal.Decimal `json:"gross_total"`
}

// DraftItemInput is one line item as supplied by the caller when saving a draft.
type DraftItemInput struct {
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	UnitPriceNet decimal.Decimal
	VATRate      decimal.Decimal
}

// DraftInput is the full content of a draft save. Items replace the previous batch.
type DraftInput struct {
	Title          string
	ClientID       *string
	Currency       string
	RecipientEmail *string
	Items          []DraftItemInput
}

// ApplyRecipientEmail sets the recipient email and resets EmailVerified only when the
// address actually changes. Addresses are compared case-insensitively after trimming.
func (o *Offer) ApplyRecipientEmail(email *string) {
	next := NormalizeEmail(email)
	if sameEmail(o.RecipientEmail, next) {
		return
	}
	o.RecipientEmail = next
	o.EmailVerified = false
}

// SentStamp carries everything written by the atomic DRAFT -> SENT transition.
type SentStamp struct {
	SentAt          time.Time
	PublicToken     string
	AcceptTokenHash string
	ValidUntil      *time.Time
	RecipientEmail  *string
	EmailVerified   bool
}

// StatusTransition is a conditional status change: it applies only while the stored
// status still equals From. At stamps the timestamp column that belongs to To.
//
// The optional guards narrow the condition further. ValidBefore requires a stored
// valid_until strictly before it; AcceptTokenHash requires the stored hash to be unchanged.
type StatusTransition struct {
	OfferID         string
	From            OfferStatus
	To              OfferStatus
	At              time.Time
	ValidBefore     *time.Time
	AcceptTokenHash *string
}

// Allows reports whether o satisfies every condition of t.
func (t StatusTransition) Allows(o *Offer) bool {
	if o.Status != t.From {
		return false
	}
	if t.ValidBefore != nil && (o.ValidUntil == nil || !o.ValidUntil.Before(*t.ValidBefore)) {
		return false
	}
	if t.AcceptTokenHash != nil && (o.AcceptTokenHash == nil || *o.AcceptTokenHash != *t.AcceptTokenHash) {
		return false
	}
	return true
}

// LinkStamp replaces the capability pair of an offer that is still awaiting a decision.
type LinkStamp struct {
	PublicToken     string
	AcceptTokenHash string
	ValidUntil      *time.Time
	UpdatedAt       time.Time
}

// OfferRepository is the persistence collaborator for offers.
// Every status write is conditional on the expected prior status; a false result means
// another caller changed the row first.
type OfferRepository interface {
	Create(ctx context.Context, offer *Offer) error
	GetByID(ctx context.Context, id string) (*Offer, error)
	GetByPublicToken(ctx context.Context, publicToken string) (*Offer, error)
	ListByOwner(ctx context.Context, ownerID string, filter OfferListFilter, params PaginationParams) ([]*Offer, int, error)
	// SaveDraft rewrites content and replaces all items, only while status is DRAFT.
	SaveDraft(ctx context.Context, offer *Offer) (bool, error)
	DeleteDraft(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, stamp SentStamp) (bool, error)
	TransitionStatus(ctx context.Context, t StatusTransition) (bool, error)
	ReplaceLink(ctx context.Context, id string, stamp LinkStamp) (bool, error)
	MarkEmailVerified(ctx context.Context, id string, email string) error
	// CountQuotaConsuming counts the owner's offers in QuotaConsumingStatuses whose
	// sent_at falls in [from, to).
	CountQuotaConsuming(ctx context.Context, ownerID string, from, to time.Time) (int, error)
	// ListOverdue returns offers awaiting a decision whose valid_until is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Offer, error)
}
