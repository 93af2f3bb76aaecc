package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/domain"
)

type fakeMailer struct {
	to, subject, html, text string
	calls                   int
	err                     error
}

func (m *fakeMailer) Send(to, subject, html, text string) error {
	m.calls++
	m.to, m.subject, m.html, m.text = to, subject, html, text
	return m.err
}

type fakeTemplateRenderer struct {
	name string
	data any
	err  error
}

func (r *fakeTemplateRenderer) Render(templateName string, data any) (string, string, string, error) {
	r.name, r.data = templateName, data
	if r.err != nil {
		return "", "", "", r.err
	}
	return "subject", "<p>html</p>", "text", nil
}

func TestEmailService_SendOfferNotification(t *testing.T) {
	mailer := &fakeMailer{}
	renderer := &fakeTemplateRenderer{}
	svc := NewEmailService(mailer, renderer, testLogger)
	data := &domain.OfferSentEmailData{Email: "client@example.com", OfferTitle: "Website", AcceptURL: "https://app.example.com/offer/p?t=a"}

	err := svc.SendOfferNotification(context.Background(), data)

	require.NoError(t, err)
	assert.Equal(t, "offer_sent", renderer.name)
	assert.Same(t, data, renderer.data)
	assert.Equal(t, 1, mailer.calls)
	assert.Equal(t, "client@example.com", mailer.to)
	assert.Equal(t, "subject", mailer.subject)
	assert.Equal(t, "<p>html</p>", mailer.html)
	assert.Equal(t, "text", mailer.text)
}

func TestEmailService_SendOfferNotification_Errors(t *testing.T) {
	tests := []struct {
		name      string
		data      *domain.OfferSentEmailData
		renderErr error
		mailErr   error
		wantMails int
	}{
		{name: "nil data", data: nil},
		{name: "no recipient", data: &domain.OfferSentEmailData{}},
		{name: "render fails", data: &domain.OfferSentEmailData{Email: "a@b.co"}, renderErr: errBoom},
		{name: "mailer fails", data: &domain.OfferSentEmailData{Email: "a@b.co"}, mailErr: errBoom, wantMails: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{err: tt.mailErr}
			svc := NewEmailService(mailer, &fakeTemplateRenderer{err: tt.renderErr}, testLogger)

			err := svc.SendOfferNotification(context.Background(), tt.data)

			require.Error(t, err)
			if tt.renderErr != nil {
				assert.ErrorIs(t, err, tt.renderErr)
			}
			if tt.mailErr != nil {
				assert.ErrorIs(t, err, tt.mailErr)
			}
			assert.Equal(t, tt.wantMails, mailer.calls)
		})
	}
}
