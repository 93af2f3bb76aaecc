package domain

import (
	"context"
	"time"
)

// PlanTier is the billing tier of an account.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// Account is the owner of offers. Only the fields the offer engine reads are modelled.
// swagger:model Account
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      PlanTier  `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountRepository reads accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
}

// TokenVerifier verifies an owner bearer token and returns the authenticated account ID.
type TokenVerifier interface {
	Verify(token string) (accountID string, err error)
}

// TokenIssuer issues owner bearer tokens. The surrounding application's login flow uses it.
type TokenIssuer interface {
	Issue(accountID string, expiry time.Duration) (string, error)
}
