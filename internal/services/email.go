package services

import (
	"context"
	"fmt"
	"log/slog"

	"quoteflow/internal/domain"
)

const offerSentTemplate = "offer_sent"

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendOfferNotification delivers the accept link (and document link, if any) to the recipient.
func (s *emailService) SendOfferNotification(ctx context.Context, data *domain.OfferSentEmailData) error {
	if data == nil {
		return fmt.Errorf("offer notification data is nil")
	}
	if data.Email == "" {
		return fmt.Errorf("offer notification has no recipient")
	}
	subject, htmlBody, textBody, err := s.renderer.Render(offerSentTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", offerSentTemplate, err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send offer email: %w", err)
	}
	s.logger.InfoContext(ctx, "offer email sent", "to", data.Email)
	return nil
}
