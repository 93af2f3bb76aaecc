package services

import (
	"context"
	"errors"
	"fmt"

	"quoteflow/internal/domain"
)

// Send moves a draft to SENT and then runs the best-effort side effects.
//
// The transition is a single conditional write on status=DRAFT, so of two concurrent
// calls exactly one performs the side effects; the other reports AlreadySent. Once the
// write commits nothing below may undo it: document and notification failures are
// recorded on the result and logged, never returned.
func (s *offerService) Send(ctx context.Context, offerID, ownerID string, opts domain.SendOptions) (*domain.SendResult, error) {
	// A caller that gives up must not abort side effects of a committed send.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.contextTimeout)
	defer cancel()

	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferStatusDraft {
		return alreadySent(offer), nil
	}

	recipient := domain.NormalizeEmail(opts.RecipientEmail)
	if recipient != nil && !emailRegexp.MatchString(*recipient) {
		return nil, fmt.Errorf("%w: invalid recipient email format", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	used, err := s.monthlyCount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanSend(account.Plan, used) {
		return nil, domain.ErrQuotaExceeded
	}

	link, err := s.tokens.IssueLink(s.validityOrDefault(opts.Validity))
	if err != nil {
		return nil, fmt.Errorf("issue link: %w", err)
	}
	if recipient != nil {
		offer.ApplyRecipientEmail(recipient)
	}
	stamp := domain.SentStamp{
		SentAt:          s.now().UTC(),
		PublicToken:     link.PublicToken,
		AcceptTokenHash: link.AcceptTokenHash,
		ValidUntil:      link.ValidUntil,
		RecipientEmail:  offer.RecipientEmail,
		EmailVerified:   offer.EmailVerified,
	}
	ok, err := s.offers.MarkSent(ctx, offer.ID, stamp)
	if err != nil {
		return nil, fmt.Errorf("mark offer sent: %w", err)
	}
	if !ok {
		// Another caller won the race; it owns the side effects.
		current, err := s.offers.GetByID(ctx, offer.ID)
		if err != nil {
			return nil, fmt.Errorf("get offer: %w", err)
		}
		return alreadySent(current), nil
	}
	applySentStamp(offer, stamp)
	s.logger.InfoContext(ctx, "offer sent", "offer_id", offer.ID, "owner_id", ownerID)

	result := &domain.SendResult{
		OfferID: offer.ID,
		Status:  offer.Status,
		Link:    link,
	}
	result.DocumentURL, result.Document = s.storeDocument(ctx, offer, account.Name)
	if offer.RecipientEmail != nil {
		result.Notification = s.notifyRecipient(ctx, offer, account.Name, link, result.DocumentURL)
		result.NotificationSent = result.Notification.Succeeded()
	}

	s.invalidate(ctx, offer)
	return result, nil
}

func alreadySent(offer *domain.Offer) *domain.SendResult {
	return &domain.SendResult{
		OfferID:     offer.ID,
		Status:      offer.Status,
		AlreadySent: true,
	}
}

func applySentStamp(offer *domain.Offer, stamp domain.SentStamp) {
	sentAt := stamp.SentAt
	publicToken := stamp.PublicToken
	hash := stamp.AcceptTokenHash
	offer.Status = domain.OfferStatusSent
	offer.SentAt = &sentAt
	offer.UpdatedAt = sentAt
	offer.PublicToken = &publicToken
	offer.AcceptTokenHash = &hash
	offer.ValidUntil = stamp.ValidUntil
	offer.RecipientEmail = stamp.RecipientEmail
	offer.EmailVerified = stamp.EmailVerified
}

func (s *offerService) validityOrDefault(v *domain.LinkValidity) domain.LinkValidity {
	if v != nil {
		return *v
	}
	return domain.LinkValidity{Days: s.defaultLinkDays}
}

// storeDocument renders and stores the offer document. A disabled store is reported
// as not attempted rather than as a failure.
func (s *offerService) storeDocument(ctx context.Context, offer *domain.Offer, senderName string) (*string, domain.SideEffectOutcome) {
	if s.documents == nil || s.store == nil {
		return nil, domain.SideEffectOutcome{}
	}
	outcome := domain.SideEffectOutcome{Attempted: true}
	doc, err := s.documents.Render(offer, senderName)
	if err != nil {
		s.logger.WarnContext(ctx, "offer document render failed", "offer_id", offer.ID, "err", err)
		outcome.Failure = "document render failed"
		return nil, outcome
	}
	url, err := s.store.Put(ctx, doc)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentStoreDisabled) {
			return nil, domain.SideEffectOutcome{}
		}
		s.logger.WarnContext(ctx, "offer document upload failed", "offer_id", offer.ID, "err", err)
		outcome.Failure = "document upload failed"
		return nil, outcome
	}
	return &url, outcome
}

func (s *offerService) notifyRecipient(ctx context.Context, offer *domain.Offer, senderName string, link *domain.IssuedLink, documentURL *string) domain.SideEffectOutcome {
	if s.email == nil {
		return domain.SideEffectOutcome{}
	}
	data := &domain.OfferSentEmailData{
		Email:      *offer.RecipientEmail,
		SenderName: senderName,
		OfferTitle: offer.Title,
		GrossTotal: offer.GrossTotal.StringFixed(moneyPlaces),
		Currency:   offer.Currency,
		AcceptURL:  link.AcceptURL,
		ValidUntil: link.ValidUntil,
	}
	if documentURL != nil {
		data.DocumentURL = *documentURL
	}
	if err := s.email.SendOfferNotification(ctx, data); err != nil {
		s.logger.WarnContext(ctx, "offer notification failed", "offer_id", offer.ID, "err", err)
		return domain.SideEffectOutcome{Attempted: true, Failure: "notification failed"}
	}
	return domain.SideEffectOutcome{Attempted: true}
}
