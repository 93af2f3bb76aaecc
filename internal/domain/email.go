package domain

import (
	"context"
	"strings"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// OfferSentEmailData holds data for the email that delivers an offer to its recipient.
type OfferSentEmailData struct {
	Email       string
	SenderName  string
	OfferTitle  string
	GrossTotal  string
	Currency    string
	AcceptURL   string
	DocumentURL string // empty when no document could be stored
	ValidUntil  *time.Time
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendOfferNotification(ctx context.Context, data *OfferSentEmailData) error
}

// NormalizeEmail trims and lowercases an address; blank becomes nil.
func NormalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

func sameEmail(a, b *string) bool {
	a, b = NormalizeEmail(a), NormalizeEmail(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
