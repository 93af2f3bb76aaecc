package services

import (
	"context"
	"errors"
	"fmt"

	"quoteflow/internal/domain"
)

// Open resolves a recipient link. The first view of a SENT offer records VIEWED; a valid
// accept token also marks the recipient email verified, since that token only travels in
// the emailed link.
func (s *offerService) Open(ctx context.Context, publicToken, acceptToken string) (*domain.PublicOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.resolveLink(ctx, publicToken)
	if err != nil {
		return nil, err
	}
	canAct := false
	if acceptToken != "" {
		if err := s.tokens.VerifyAcceptToken(offer, acceptToken); err != nil {
			return nil, err
		}
		canAct = true
	}
	if offer.Status.Awaiting() && s.tokens.IsExpired(offer.ValidUntil) {
		return nil, domain.ErrTokenExpired
	}

	if offer.Status == domain.OfferStatusSent {
		ok, err := s.offers.TransitionStatus(ctx, domain.StatusTransition{
			OfferID: offer.ID,
			From:    domain.OfferStatusSent,
			To:      domain.OfferStatusViewed,
			At:      s.now().UTC(),
		})
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "record offer view failed", "offer_id", offer.ID, "err", err)
		case ok:
			offer.Status = domain.OfferStatusViewed
			s.invalidateOffer(ctx, offer.ID)
		}
	}
	if canAct && !offer.EmailVerified && offer.RecipientEmail != nil {
		if err := s.offers.MarkEmailVerified(ctx, offer.ID, *offer.RecipientEmail); err != nil {
			s.logger.WarnContext(ctx, "mark recipient email verified failed", "offer_id", offer.ID, "err", err)
		} else {
			s.invalidateOffer(ctx, offer.ID)
		}
	}

	view := &domain.PublicOffer{
		Title:      offer.Title,
		SenderName: s.senderName(ctx, offer.OwnerID),
		Status:     offer.Status,
		Currency:   offer.Currency,
		NetTotal:   offer.NetTotal.StringFixed(moneyPlaces),
		VATTotal:   offer.VATTotal.StringFixed(moneyPlaces),
		GrossTotal: offer.GrossTotal.StringFixed(moneyPlaces),
		SentAt:     offer.SentAt,
		ValidUntil: offer.ValidUntil,
		AcceptedAt: offer.AcceptedAt,
		Items:      offer.Items,
	}
	if view.Items == nil {
		view.Items = []*domain.OfferItem{}
	}
	if canAct {
		view.CanAct = offer.Status.Awaiting()
		view.CanUndo = offer.Status == domain.OfferStatusAccepted &&
			offer.AcceptedAt != nil && s.lifecycle.CanCancel(*offer.AcceptedAt, s.now())
	}
	return view, nil
}

func (s *offerService) Accept(ctx context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	return s.decide(ctx, publicToken, acceptToken, domain.OfferStatusAccepted)
}

func (s *offerService) Reject(ctx context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	return s.decide(ctx, publicToken, acceptToken, domain.OfferStatusRejected)
}

// decide applies a recipient decision. On an offer that is already terminal it changes
// nothing and returns the current status, so repeated clicks and retries are safe.
func (s *offerService) decide(ctx context.Context, publicToken, acceptToken string, to domain.OfferStatus) (domain.OfferStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.resolveLink(ctx, publicToken)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if err := s.tokens.VerifyAcceptToken(offer, acceptToken); err != nil {
			return "", err
		}
		if offer.Status.Terminal() {
			return offer.Status, nil
		}
		if s.tokens.IsExpired(offer.ValidUntil) {
			return "", domain.ErrTokenExpired
		}
		if err := s.lifecycle.Check(offer.Status, to); err != nil {
			return "", err
		}
		// A concurrent reissue replaces the hash; the token verified above then no longer counts.
		ok, err := s.offers.TransitionStatus(ctx, domain.StatusTransition{
			OfferID:         offer.ID,
			From:            offer.Status,
			To:              to,
			At:              s.now().UTC(),
			AcceptTokenHash: offer.AcceptTokenHash,
		})
		if err != nil {
			return "", fmt.Errorf("update offer status: %w", err)
		}
		if ok {
			s.invalidate(ctx, offer)
			s.logger.InfoContext(ctx, "offer decided", "offer_id", offer.ID, "status", to)
			return to, nil
		}
		if offer, err = s.reload(ctx, offer.ID); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: offer changed concurrently", domain.ErrIllegalTransition)
}

// UndoAcceptance lets the recipient revert an acceptance inside the cancellation window.
func (s *offerService) UndoAcceptance(ctx context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.resolveLink(ctx, publicToken)
	if err != nil {
		return "", err
	}
	if err := s.tokens.VerifyAcceptToken(offer, acceptToken); err != nil {
		return "", err
	}
	offer, err = s.undo(ctx, offer)
	if err != nil {
		return "", err
	}
	return offer.Status, nil
}

// CancelAcceptance is the owner-initiated undo of an acceptance.
func (s *offerService) CancelAcceptance(ctx context.Context, offerID, ownerID string) (*domain.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.undo(ctx, offer)
}

func (s *offerService) undo(ctx context.Context, offer *domain.Offer) (*domain.Offer, error) {
	now := s.now()
	if err := s.lifecycle.CheckUndo(offer, now); err != nil {
		return nil, err
	}
	ok, err := s.offers.TransitionStatus(ctx, domain.StatusTransition{
		OfferID: offer.ID,
		From:    domain.OfferStatusAccepted,
		To:      domain.OfferStatusSent,
		At:      now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("update offer status: %w", err)
	}
	if !ok {
		current, err := s.reload(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.OfferStatusSent {
			return current, nil
		}
		return nil, domain.IllegalTransition(current.Status, domain.OfferStatusSent)
	}
	s.invalidate(ctx, offer)
	s.logger.InfoContext(ctx, "offer acceptance undone", "offer_id", offer.ID)
	offer.Status = domain.OfferStatusSent
	offer.AcceptedAt = nil
	offer.UpdatedAt = now.UTC()
	return offer, nil
}

// Withdraw is the owner-initiated cancellation of a draft or sent offer.
func (s *offerService) Withdraw(ctx context.Context, offerID, ownerID string) (*domain.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.moveTo(ctx, offer, domain.OfferStatusWithdrawn)
}

// Expire moves an offer whose valid_until has passed to EXPIRED. It is the transition
// the periodic sweep uses; an already expired offer is reported as is. The write is
// conditional on valid_until still being past, so a link re-issued in the meantime survives.
func (s *offerService) Expire(ctx context.Context, offerID string) (domain.OfferStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.reload(ctx, offerID)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if offer.Status == domain.OfferStatusExpired {
			return offer.Status, nil
		}
		if err := s.lifecycle.Check(offer.Status, domain.OfferStatusExpired); err != nil {
			return "", err
		}
		if !s.tokens.IsExpired(offer.ValidUntil) {
			return "", fmt.Errorf("%w: offer is still valid", domain.ErrIllegalTransition)
		}
		now := s.now().UTC()
		ok, err := s.offers.TransitionStatus(ctx, domain.StatusTransition{
			OfferID:     offer.ID,
			From:        offer.Status,
			To:          domain.OfferStatusExpired,
			At:          now,
			ValidBefore: &now,
		})
		if err != nil {
			return "", fmt.Errorf("update offer status: %w", err)
		}
		if ok {
			s.invalidate(ctx, offer)
			s.logger.InfoContext(ctx, "offer expired", "offer_id", offer.ID, "from", offer.Status)
			return domain.OfferStatusExpired, nil
		}
		if offer, err = s.reload(ctx, offer.ID); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: offer changed concurrently", domain.ErrIllegalTransition)
}

// ExpireOverdue expires every awaiting offer past its valid_until, in batches.
func (s *offerService) ExpireOverdue(ctx context.Context) (int, error) {
	expired := 0
	for {
		batch, err := s.offers.ListOverdue(ctx, s.now().UTC(), s.sweepBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list overdue offers: %w", err)
		}
		progressed := 0
		for _, offer := range batch {
			if _, err := s.Expire(ctx, offer.ID); err != nil {
				s.logger.WarnContext(ctx, "expire offer failed", "offer_id", offer.ID, "err", err)
				continue
			}
			progressed++
		}
		expired += progressed
		if len(batch) < s.sweepBatchSize || progressed == 0 {
			return expired, nil
		}
	}
}

// ReissueLink replaces the capability pair of an awaiting offer. The previous accept
// token stops validating as soon as the write commits.
func (s *offerService) ReissueLink(ctx context.Context, offerID, ownerID string, validity *domain.LinkValidity) (*domain.IssuedLink, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	if !offer.Status.Awaiting() {
		return nil, fmt.Errorf("%w: links can only be re-issued while the offer awaits a decision (status %s)", domain.ErrIllegalTransition, offer.Status)
	}
	link, err := s.tokens.IssueLink(s.validityOrDefault(validity))
	if err != nil {
		return nil, fmt.Errorf("issue link: %w", err)
	}
	ok, err := s.offers.ReplaceLink(ctx, offer.ID, domain.LinkStamp{
		PublicToken:     link.PublicToken,
		AcceptTokenHash: link.AcceptTokenHash,
		ValidUntil:      link.ValidUntil,
		UpdatedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("replace offer link: %w", err)
	}
	if !ok {
		current, err := s.reload(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: offer is %s", domain.ErrIllegalTransition, current.Status)
	}
	s.invalidateOffer(ctx, offer.ID)
	s.logger.InfoContext(ctx, "offer link reissued", "offer_id", offer.ID)
	return link, nil
}

// moveTo applies an owner- or system-driven transition, re-evaluating against the stored
// status when a concurrent writer got there first.
func (s *offerService) moveTo(ctx context.Context, offer *domain.Offer, to domain.OfferStatus) (*domain.Offer, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if err := s.lifecycle.Check(offer.Status, to); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		ok, err := s.offers.TransitionStatus(ctx, domain.StatusTransition{
			OfferID: offer.ID,
			From:    offer.Status,
			To:      to,
			At:      now,
		})
		if err != nil {
			return nil, fmt.Errorf("update offer status: %w", err)
		}
		if ok {
			s.invalidate(ctx, offer)
			s.logger.InfoContext(ctx, "offer status changed", "offer_id", offer.ID, "from", offer.Status, "to", to)
			offer.Status = to
			offer.UpdatedAt = now
			return offer, nil
		}
		if offer, err = s.reload(ctx, offer.ID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: offer changed concurrently", domain.ErrIllegalTransition)
}

func (s *offerService) resolveLink(ctx context.Context, publicToken string) (*domain.Offer, error) {
	if publicToken == "" {
		return nil, domain.ErrTokenInvalid
	}
	offer, err := s.offers.GetByPublicToken(ctx, publicToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("get offer by link: %w", err)
	}
	return offer, nil
}

func (s *offerService) reload(ctx context.Context, offerID string) (*domain.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return offer, nil
}

func (s *offerService) senderName(ctx context.Context, ownerID string) string {
	account, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		s.logger.WarnContext(ctx, "load offer sender failed", "owner_id", ownerID, "err", err)
		return ""
	}
	return account.Name
}
