package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/domain"
)

func TestTemplateRenderer_OfferSent(t *testing.T) {
	validUntil := time.Date(2026, 4, 14, 12, 0, 0, 0, time.UTC)
	data := &domain.OfferSentEmailData{
		Email:       "client@example.com",
		SenderName:  "Acme & Sons",
		OfferTitle:  "Website redesign",
		GrossTotal:  "1131.45",
		Currency:    "EUR",
		AcceptURL:   "https://app.example.com/offer/pub?t=acc",
		DocumentURL: "https://docs.example.com/offers/1.html",
		ValidUntil:  &validUntil,
	}

	subject, html, text, err := NewTemplateRenderer().Render("offer_sent", data)
	require.NoError(t, err)

	assert.Equal(t, "Acme & Sons sent you an offer: Website redesign", subject)
	assert.Contains(t, html, "Acme &amp; Sons")
	assert.Contains(t, html, `href="https://app.example.com/offer/pub?t=acc"`)
	assert.Contains(t, html, "download the offer document")
	assert.Contains(t, html, "14 April 2026")
	assert.Contains(t, text, "1131.45 EUR")
	assert.Contains(t, text, "https://app.example.com/offer/pub?t=acc")
	assert.Contains(t, text, "https://docs.example.com/offers/1.html")
}

func TestTemplateRenderer_OfferSent_WithoutOptionalParts(t *testing.T) {
	data := &domain.OfferSentEmailData{SenderName: "Acme", OfferTitle: "T", AcceptURL: "https://x/offer/p?t=a"}

	_, html, text, err := NewTemplateRenderer().Render("offer_sent", data)
	require.NoError(t, err)

	assert.NotContains(t, html, "download the offer document")
	assert.NotContains(t, html, "valid until")
	assert.NotContains(t, text, "Offer document")
}

func TestTemplateRenderer_UnknownTemplate(t *testing.T) {
	_, _, _, err := NewTemplateRenderer().Render("missing", nil)
	assert.Error(t, err)
}
