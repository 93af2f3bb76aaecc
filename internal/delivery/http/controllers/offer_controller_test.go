package controllers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/delivery/http/helpers"
	"quoteflow/internal/delivery/http/middleware"
	"quoteflow/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

func ownerRequest(method, target, body, accountID string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://test"+target, rd)
	if accountID != "" {
		req = req.WithContext(middleware.SetAccountID(req.Context(), accountID))
	}
	return req
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if data != nil && envelope.Error == nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Error
}

func TestOfferController_CreateOffer(t *testing.T) {
	tests := []struct {
		name       string
		accountID  string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
		check      func(t *testing.T, input domain.DraftInput)
	}{
		{
			name:      "success",
			accountID: "acct-1",
			body: `{"title":" Website ","currency":"eur","recipient_email":"a@b.com",
				"items":[{"name":"Design","unit":"h","quantity":"2.5","unit_price_net":120,"vat_rate":"23"}]}`,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, input domain.DraftInput) {
				assert.Equal(t, "Website", input.Title)
				assert.Equal(t, "EUR", input.Currency)
				require.Len(t, input.Items, 1)
				assert.True(t, decimal.RequireFromString("2.5").Equal(input.Items[0].Quantity))
				assert.True(t, decimal.NewFromInt(120).Equal(input.Items[0].UnitPriceNet))
				assert.Equal(t, "a@b.com", *input.RecipientEmail)
			},
		},
		{
			name:       "no account in context",
			body:       `{"title":"x"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   helpers.ErrCodeUnauthorized,
		},
		{
			name:       "missing title",
			accountID:  "acct-1",
			body:       `{"title":"  ","currency":"EUR"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "item without name",
			accountID:  "acct-1",
			body:       `{"title":"x","items":[{"name":""}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "malformed amount",
			accountID:  "acct-1",
			body:       `{"title":"x","items":[{"name":"a","quantity":"two"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "service rejects input",
			accountID:  "acct-1",
			body:       `{"title":"x","currency":"EURO"}`,
			svcErr:     domain.ErrInvalidInput,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.DraftInput
			fake := &fakeOfferService{
				createDraft: func(ownerID string, input domain.DraftInput) (*domain.Offer, error) {
					assert.Equal(t, "acct-1", ownerID)
					got = input
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &domain.Offer{ID: "offer-1", OwnerID: ownerID, Status: domain.OfferStatusDraft}, nil
				},
			}
			ctrl := NewOfferController(testLogger, fake)
			rr := httptest.NewRecorder()

			ctrl.CreateOffer(rr, ownerRequest(http.MethodPost, "/offers", tt.body, tt.accountID))

			require.Equal(t, tt.wantStatus, rr.Code)
			var offer domain.Offer
			apiErr := decodeEnvelope(t, rr, &offer)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			assert.Equal(t, "offer-1", offer.ID)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestOfferController_ListOffers(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantFilter *domain.OfferStatus
		wantParams domain.PaginationParams
	}{
		{name: "defaults", wantStatus: http.StatusOK, wantParams: domain.PaginationParams{Page: 1, PageSize: 20}},
		{name: "status filter", query: "?status=Sent&page=2&page_size=5", wantStatus: http.StatusOK,
			wantFilter: ptr(domain.OfferStatusSent), wantParams: domain.PaginationParams{Page: 2, PageSize: 5}},
		{name: "unknown status", query: "?status=paid", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOfferService{
				listOffers: func(ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error) {
					assert.Equal(t, tt.wantFilter, filter.Status)
					assert.Equal(t, tt.wantParams, params)
					return []*domain.Offer{{ID: "offer-1"}}, 7, nil
				},
			}
			rr := httptest.NewRecorder()

			NewOfferController(testLogger, fake).ListOffers(rr, ownerRequest(http.MethodGet, "/offers"+tt.query, "", "acct-1"))

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, fake.calls)
				return
			}
			var resp ListOffersResponse
			require.Nil(t, decodeEnvelope(t, rr, &resp))
			assert.Len(t, resp.Items, 1)
			assert.Equal(t, 7, resp.Pagination.Total)
		})
	}
}

func TestOfferController_ListOffers_EmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	NewOfferController(testLogger, &fakeOfferService{}).ListOffers(rr, ownerRequest(http.MethodGet, "/offers", "", "acct-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"items":[]`)
}

func TestOfferController_GetOffer(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "not found", svcErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
		{name: "other owner", svcErr: domain.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: helpers.ErrCodeForbidden},
		{name: "internal", svcErr: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: helpers.ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOfferService{
				getOffer: func(offerID, ownerID string) (*domain.Offer, error) {
					assert.Equal(t, "offer-1", offerID)
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &domain.Offer{ID: offerID, GrossTotal: decimal.RequireFromString("123.45")}, nil
				},
			}
			req := ownerRequest(http.MethodGet, "/offers/offer-1", "", "acct-1")
			req.SetPathValue("offerID", "offer-1")
			rr := httptest.NewRecorder()

			NewOfferController(testLogger, fake).GetOffer(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			apiErr := decodeEnvelope(t, rr, nil)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestOfferController_SaveOffer(t *testing.T) {
	fake := &fakeOfferService{
		saveDraft: func(offerID, ownerID string, input domain.DraftInput) (*domain.Offer, error) {
			return nil, domain.IllegalTransition(domain.OfferStatusSent, domain.OfferStatusDraft)
		},
	}
	req := ownerRequest(http.MethodPut, "/offers/offer-1", `{"title":"x","currency":"EUR","items":[]}`, "acct-1")
	req.SetPathValue("offerID", "offer-1")
	rr := httptest.NewRecorder()

	NewOfferController(testLogger, fake).SaveOffer(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	apiErr := decodeEnvelope(t, rr, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, helpers.ErrCodeIllegalTransition, apiErr.Code)
}

func TestOfferController_DeleteOffer(t *testing.T) {
	fake := &fakeOfferService{}
	req := ownerRequest(http.MethodDelete, "/offers/offer-1", "", "acct-1")
	req.SetPathValue("offerID", "offer-1")
	rr := httptest.NewRecorder()

	NewOfferController(testLogger, fake).DeleteOffer(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"DeleteDraft"}, fake.calls)
}

func TestOfferController_SendOffer(t *testing.T) {
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		body         string
		svcErr       error
		wantStatus   int
		wantCode     string
		wantValidity *domain.LinkValidity
		wantEmail    *string
	}{
		{name: "empty body uses defaults", wantStatus: http.StatusOK},
		{name: "valid days", body: `{"valid_days":7}`, wantStatus: http.StatusOK, wantValidity: &domain.LinkValidity{Days: 7}},
		{name: "valid until", body: `{"valid_until":"2026-12-31T00:00:00Z","recipient_email":"c@d.com"}`, wantStatus: http.StatusOK,
			wantValidity: &domain.LinkValidity{Until: &until}, wantEmail: ptr("c@d.com")},
		{name: "both validity fields", body: `{"valid_days":7,"valid_until":"2026-12-31T00:00:00Z"}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "negative days", body: `{"valid_days":-1}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "quota exceeded", svcErr: domain.ErrQuotaExceeded, wantStatus: http.StatusPaymentRequired, wantCode: helpers.ErrCodeQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOfferService{
				send: func(offerID, ownerID string, opts domain.SendOptions) (*domain.SendResult, error) {
					assert.Equal(t, tt.wantValidity, opts.Validity)
					assert.Equal(t, tt.wantEmail, opts.RecipientEmail)
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &domain.SendResult{
						OfferID: offerID,
						Status:  domain.OfferStatusSent,
						Link:    &domain.IssuedLink{PublicToken: "pub", AcceptToken: "secret", AcceptURL: "http://x/offer/pub?t=secret"},
					}, nil
				},
			}
			req := ownerRequest(http.MethodPost, "/offers/offer-1/send", tt.body, "acct-1")
			req.SetPathValue("offerID", "offer-1")
			rr := httptest.NewRecorder()

			NewOfferController(testLogger, fake).SendOffer(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			var result domain.SendResult
			apiErr := decodeEnvelope(t, rr, &result)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			assert.Equal(t, domain.OfferStatusSent, result.Status)
			require.NotNil(t, result.Link)
			assert.Equal(t, "http://x/offer/pub?t=secret", result.Link.AcceptURL)
		})
	}
}

func TestOfferController_StatusActions(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *OfferController, w http.ResponseWriter, r *http.Request)
		fake       *fakeOfferService
		wantStatus int
		wantCode   string
	}{
		{
			name: "withdraw",
			call: (*OfferController).WithdrawOffer,
			fake: &fakeOfferService{withdraw: func(string, string) (*domain.Offer, error) {
				return &domain.Offer{Status: domain.OfferStatusWithdrawn}, nil
			}},
			wantStatus: http.StatusOK,
		},
		{
			name: "withdraw decided offer",
			call: (*OfferController).WithdrawOffer,
			fake: &fakeOfferService{withdraw: func(string, string) (*domain.Offer, error) {
				return nil, domain.IllegalTransition(domain.OfferStatusAccepted, domain.OfferStatusWithdrawn)
			}},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeIllegalTransition,
		},
		{
			name: "cancel acceptance after window",
			call: (*OfferController).CancelAcceptance,
			fake: &fakeOfferService{cancelAcceptance: func(string, string) (*domain.Offer, error) {
				return nil, domain.ErrCancellationWindowClosed
			}},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeCancellationWindowClosed,
		},
		{
			name: "reissue link",
			call: (*OfferController).ReissueLink,
			fake: &fakeOfferService{reissueLink: func(_, _ string, validity *domain.LinkValidity) (*domain.IssuedLink, error) {
				if validity != nil {
					return nil, assert.AnError
				}
				return &domain.IssuedLink{PublicToken: "pub-2"}, nil
			}},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ownerRequest(http.MethodPost, "/offers/offer-1/x", "", "acct-1")
			req.SetPathValue("offerID", "offer-1")
			rr := httptest.NewRecorder()

			tt.call(NewOfferController(testLogger, tt.fake), rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			apiErr := decodeEnvelope(t, rr, nil)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestOfferController_GetQuota(t *testing.T) {
	fake := &fakeOfferService{
		quotaStatus: func(ownerID string) (*domain.QuotaStatus, error) {
			return &domain.QuotaStatus{Plan: domain.PlanFree, Used: 3, Quota: domain.Quota{Remaining: 0}, CanSend: false}, nil
		},
	}
	rr := httptest.NewRecorder()

	NewOfferController(testLogger, fake).GetQuota(rr, ownerRequest(http.MethodGet, "/quota", "", "acct-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var status domain.QuotaStatus
	require.Nil(t, decodeEnvelope(t, rr, &status))
	assert.Equal(t, 3, status.Used)
	assert.False(t, status.CanSend)
}

func ptr[T any](v T) *T { return &v }
