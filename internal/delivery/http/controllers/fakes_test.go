package controllers

import (
	"context"

	"quoteflow/internal/domain"
)

// fakeOfferService implements domain.OfferService for handler tests. Each call is
// recorded; unset funcs return zero values.
type fakeOfferService struct {
	createDraft      func(ownerID string, input domain.DraftInput) (*domain.Offer, error)
	saveDraft        func(offerID, ownerID string, input domain.DraftInput) (*domain.Offer, error)
	deleteDraft      func(offerID, ownerID string) error
	getOffer         func(offerID, ownerID string) (*domain.Offer, error)
	listOffers       func(ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error)
	quotaStatus      func(ownerID string) (*domain.QuotaStatus, error)
	send             func(offerID, ownerID string, opts domain.SendOptions) (*domain.SendResult, error)
	withdraw         func(offerID, ownerID string) (*domain.Offer, error)
	cancelAcceptance func(offerID, ownerID string) (*domain.Offer, error)
	reissueLink      func(offerID, ownerID string, validity *domain.LinkValidity) (*domain.IssuedLink, error)
	open             func(publicToken, acceptToken string) (*domain.PublicOffer, error)
	decide           func(action, publicToken, acceptToken string) (domain.OfferStatus, error)

	calls []string
}

func (f *fakeOfferService) CreateDraft(_ context.Context, ownerID string, input domain.DraftInput) (*domain.Offer, error) {
	f.calls = append(f.calls, "CreateDraft")
	if f.createDraft == nil {
		return &domain.Offer{}, nil
	}
	return f.createDraft(ownerID, input)
}

func (f *fakeOfferService) SaveDraft(_ context.Context, offerID, ownerID string, input domain.DraftInput) (*domain.Offer, error) {
	f.calls = append(f.calls, "SaveDraft")
	if f.saveDraft == nil {
		return &domain.Offer{}, nil
	}
	return f.saveDraft(offerID, ownerID, input)
}

func (f *fakeOfferService) DeleteDraft(_ context.Context, offerID, ownerID string) error {
	f.calls = append(f.calls, "DeleteDraft")
	if f.deleteDraft == nil {
		return nil
	}
	return f.deleteDraft(offerID, ownerID)
}

func (f *fakeOfferService) GetOffer(_ context.Context, offerID, ownerID string) (*domain.Offer, error) {
	f.calls = append(f.calls, "GetOffer")
	if f.getOffer == nil {
		return &domain.Offer{}, nil
	}
	return f.getOffer(offerID, ownerID)
}

func (f *fakeOfferService) ListOffers(_ context.Context, ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error) {
	f.calls = append(f.calls, "ListOffers")
	if f.listOffers == nil {
		return nil, 0, nil
	}
	return f.listOffers(ownerID, filter, params)
}

func (f *fakeOfferService) QuotaStatus(_ context.Context, ownerID string) (*domain.QuotaStatus, error) {
	f.calls = append(f.calls, "QuotaStatus")
	if f.quotaStatus == nil {
		return &domain.QuotaStatus{}, nil
	}
	return f.quotaStatus(ownerID)
}

func (f *fakeOfferService) Send(_ context.Context, offerID, ownerID string, opts domain.SendOptions) (*domain.SendResult, error) {
	f.calls = append(f.calls, "Send")
	if f.send == nil {
		return &domain.SendResult{}, nil
	}
	return f.send(offerID, ownerID, opts)
}

func (f *fakeOfferService) Withdraw(_ context.Context, offerID, ownerID string) (*domain.Offer, error) {
	f.calls = append(f.calls, "Withdraw")
	if f.withdraw == nil {
		return &domain.Offer{}, nil
	}
	return f.withdraw(offerID, ownerID)
}

func (f *fakeOfferService) CancelAcceptance(_ context.Context, offerID, ownerID string) (*domain.Offer, error) {
	f.calls = append(f.calls, "CancelAcceptance")
	if f.cancelAcceptance == nil {
		return &domain.Offer{}, nil
	}
	return f.cancelAcceptance(offerID, ownerID)
}

func (f *fakeOfferService) ReissueLink(_ context.Context, offerID, ownerID string, validity *domain.LinkValidity) (*domain.IssuedLink, error) {
	f.calls = append(f.calls, "ReissueLink")
	if f.reissueLink == nil {
		return &domain.IssuedLink{}, nil
	}
	return f.reissueLink(offerID, ownerID, validity)
}

func (f *fakeOfferService) Open(_ context.Context, publicToken, acceptToken string) (*domain.PublicOffer, error) {
	f.calls = append(f.calls, "Open")
	if f.open == nil {
		return &domain.PublicOffer{}, nil
	}
	return f.open(publicToken, acceptToken)
}

func (f *fakeOfferService) Accept(_ context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	return f.decideAs("Accept", publicToken, acceptToken)
}

func (f *fakeOfferService) Reject(_ context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	return f.decideAs("Reject", publicToken, acceptToken)
}

func (f *fakeOfferService) UndoAcceptance(_ context.Context, publicToken, acceptToken string) (domain.OfferStatus, error) {
	return f.decideAs("UndoAcceptance", publicToken, acceptToken)
}

func (f *fakeOfferService) decideAs(action, publicToken, acceptToken string) (domain.OfferStatus, error) {
	f.calls = append(f.calls, action)
	if f.decide == nil {
		return "", nil
	}
	return f.decide(action, publicToken, acceptToken)
}

func (f *fakeOfferService) Expire(_ context.Context, _ string) (domain.OfferStatus, error) {
	f.calls = append(f.calls, "Expire")
	return domain.OfferStatusExpired, nil
}

func (f *fakeOfferService) ExpireOverdue(_ context.Context) (int, error) {
	f.calls = append(f.calls, "ExpireOverdue")
	return 0, nil
}
