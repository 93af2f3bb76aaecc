package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quoteflow/internal/domain"
)

// tokenBytes is the entropy of each capability token (256 bits).
const tokenBytes = 32

type tokenAuthority struct {
	baseURL  string
	hashCost int
	now      func() time.Time
}

// NewTokenAuthority returns a TokenAuthority that builds links under baseURL.
// hashCost is the bcrypt cost used for accept tokens at rest; out-of-range values use bcrypt.DefaultCost.
func NewTokenAuthority(baseURL string, hashCost int, now func() time.Time) domain.TokenAuthority {
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	if now == nil {
		now = time.Now
	}
	return &tokenAuthority{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hashCost: hashCost,
		now:      now,
	}
}

func (a *tokenAuthority) IssueLink(validity domain.LinkValidity) (*domain.IssuedLink, error) {
	validUntil, err := a.validUntil(validity)
	if err != nil {
		return nil, err
	}
	publicToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate public token: %w", err)
	}
	acceptToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate accept token: %w", err)
	}
	// 256 random bits each; equal values mean the random source is broken.
	if publicToken == acceptToken {
		return nil, fmt.Errorf("generate tokens: public and accept token collided")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(acceptToken), a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash accept token: %w", err)
	}
	return &domain.IssuedLink{
		PublicToken:     publicToken,
		AcceptToken:     acceptToken,
		AcceptTokenHash: string(hash),
		ValidUntil:      validUntil,
		ViewURL:         a.BuildViewURL(publicToken),
		AcceptURL:       a.BuildAcceptURL(publicToken, acceptToken),
	}, nil
}

func (a *tokenAuthority) validUntil(v domain.LinkValidity) (*time.Time, error) {
	now := a.now().UTC()
	switch {
	case v.Until != nil:
		until := v.Until.UTC()
		if !until.After(now) {
			return nil, fmt.Errorf("%w: valid_until must be in the future", domain.ErrInvalidInput)
		}
		return &until, nil
	case v.Days < 0:
		return nil, fmt.Errorf("%w: expiry days must not be negative", domain.ErrInvalidInput)
	case v.Days == 0:
		return nil, nil
	default:
		until := now.AddDate(0, 0, v.Days)
		return &until, nil
	}
}

// BuildViewURL encodes only the public token.
func (a *tokenAuthority) BuildViewURL(publicToken string) string {
	return a.baseURL + "/offer/" + url.PathEscape(publicToken)
}

// BuildAcceptURL encodes both tokens; t is the only place the accept token may appear.
func (a *tokenAuthority) BuildAcceptURL(publicToken, acceptToken string) string {
	return a.BuildViewURL(publicToken) + "?t=" + url.QueryEscape(acceptToken)
}

func (a *tokenAuthority) VerifyAcceptToken(offer *domain.Offer, acceptToken string) error {
	if offer == nil || offer.AcceptTokenHash == nil || acceptToken == "" {
		return domain.ErrTokenInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*offer.AcceptTokenHash), []byte(acceptToken)); err != nil {
		return domain.ErrTokenInvalid
	}
	return nil
}

// IsExpired is false for a nil validUntil and true only when validUntil is strictly in the past.
func (a *tokenAuthority) IsExpired(validUntil *time.Time) bool {
	if validUntil == nil {
		return false
	}
	return validUntil.Before(a.now())
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
