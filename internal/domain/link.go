package domain

import "time"

// LinkValidity selects how valid_until is computed when a link is issued.
// Until takes precedence over Days; when both are zero the link never expires.
type LinkValidity struct {
	Days  int
	Until *time.Time
}

// IssuedLink is a freshly issued capability pair. AcceptToken is plaintext and is never stored.
// swagger:model IssuedLink
type IssuedLink struct {
	PublicToken     string     `json:"public_token"`
	AcceptToken     string     `json:"-"`
	AcceptTokenHash string     `json:"-"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	ViewURL         string     `json:"view_url"`
	AcceptURL       string     `json:"accept_url"`
}

// TokenAuthority issues and validates the public/accept capability pair.
type TokenAuthority interface {
	IssueLink(validity LinkValidity) (*IssuedLink, error)
	BuildViewURL(publicToken string) string
	BuildAcceptURL(publicToken, acceptToken string) string
	// VerifyAcceptToken checks acceptToken against the offer's current pair.
	VerifyAcceptToken(offer *Offer, acceptToken string) error
	IsExpired(validUntil *time.Time) bool
}
