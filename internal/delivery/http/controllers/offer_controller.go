package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"quoteflow/internal/delivery/http/helpers"
	"quoteflow/internal/delivery/http/middleware"
	"quoteflow/internal/domain"
)

// OfferItemRequest is one line item of a draft. Amounts accept JSON numbers or decimal strings.
type OfferItemRequest struct {
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity" swaggertype:"string" example:"2.5"`
	UnitPriceNet decimal.Decimal `json:"unit_price_net" swaggertype:"string" example:"120.00"`
	VATRate      decimal.Decimal `json:"vat_rate" swaggertype:"string" example:"23"`
}

// DraftRequest is the request body for POST /offers and PUT /offers/{offerID}.
// Items replace the previous batch in full.
type DraftRequest struct {
	Title          string             `json:"title"`
	ClientID       *string            `json:"client_id"`
	Currency       string             `json:"currency"`
	RecipientEmail *string            `json:"recipient_email"`
	Items          []OfferItemRequest `json:"items"`
}

// Validate implements Validator.
func (d DraftRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(d.Title) == "" {
		errs = append(errs, "title is required")
	}
	for i, it := range d.Items {
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, fmt.Sprintf("items[%d].name is required", i))
		}
	}
	return errs
}

func (d DraftRequest) toInput() domain.DraftInput {
	return domain.DraftInput{
		Title:          strings.TrimSpace(d.Title),
		ClientID:       d.ClientID,
		Currency:       strings.ToUpper(strings.TrimSpace(d.Currency)),
		RecipientEmail: d.RecipientEmail,
		Items: lo.Map(d.Items, func(it OfferItemRequest, _ int) domain.DraftItemInput {
			return domain.DraftItemInput{
				Name:         strings.TrimSpace(it.Name),
				Unit:         strings.TrimSpace(it.Unit),
				Quantity:     it.Quantity,
				UnitPriceNet: it.UnitPriceNet,
				VATRate:      it.VATRate,
			}
		}),
	}
}

// LinkValidityRequest selects the link expiry. Set at most one of valid_days and valid_until;
// omit both to use the configured default.
type LinkValidityRequest struct {
	ValidDays  *int       `json:"valid_days"`
	ValidUntil *time.Time `json:"valid_until"`
}

// Validate implements Validator.
func (l LinkValidityRequest) Validate() []string {
	var errs []string
	if l.ValidDays != nil && l.ValidUntil != nil {
		errs = append(errs, "set only one of valid_days and valid_until")
	}
	if l.ValidDays != nil && *l.ValidDays < 0 {
		errs = append(errs, "valid_days must not be negative")
	}
	return errs
}

func (l LinkValidityRequest) toValidity() *domain.LinkValidity {
	switch {
	case l.ValidUntil != nil:
		until := l.ValidUntil.UTC()
		return &domain.LinkValidity{Until: &until}
	case l.ValidDays != nil:
		return &domain.LinkValidity{Days: *l.ValidDays}
	}
	return nil
}

// SendOfferRequest is the optional request body for POST /offers/{offerID}/send.
type SendOfferRequest struct {
	RecipientEmail *string `json:"recipient_email"`
	LinkValidityRequest
}

// ListOffersResponse is the data payload for GET /offers (200).
type ListOffersResponse struct {
	Items      []*domain.Offer        `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// OfferSuccessResponse is the success response envelope for endpoints returning one offer.
type OfferSuccessResponse struct {
	Data  *domain.Offer     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListOffersSuccessResponse is the success response envelope for GET /offers (200).
type ListOffersSuccessResponse struct {
	Data  ListOffersResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// SendOfferSuccessResponse is the success response envelope for POST /offers/{offerID}/send (200).
type SendOfferSuccessResponse struct {
	Data  *domain.SendResult `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// IssuedLinkSuccessResponse is the success response envelope for POST /offers/{offerID}/link (200).
type IssuedLinkSuccessResponse struct {
	Data  *domain.IssuedLink `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// QuotaSuccessResponse is the success response envelope for GET /quota (200).
type QuotaSuccessResponse struct {
	Data  *domain.QuotaStatus `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// OfferController handles the owner-facing offer endpoints.
type OfferController struct {
	Logger  *slog.Logger
	Service domain.OfferService
}

// NewOfferController creates an OfferController with the given logger and service.
func NewOfferController(logger *slog.Logger, svc domain.OfferService) *OfferController {
	return &OfferController{
		Logger:  logger,
		Service: svc,
	}
}

func (c *OfferController) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
	}
	return ownerID, ok
}

// CreateOffer godoc
// @Summary Create a draft offer
// @Description Creates a DRAFT offer owned by the caller. Totals are computed server-side from the items. Saving a draft never consumes quota.
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DraftRequest true "Draft content"
// @Success 201 {object} controllers.OfferSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /offers [post]
func (c *OfferController) CreateOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var req DraftRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	offer, err := c.Service.CreateDraft(r.Context(), ownerID, req.toInput())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, offer)
}

// ListOffers godoc
// @Summary List offers
// @Description Lists the caller's offers, newest first. Optional status filter.
// @Tags offers
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft, sent, viewed, accepted, rejected, expired or withdrawn"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListOffersSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /offers [get]
func (c *OfferController) ListOffers(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var filter domain.OfferListFilter
	if s := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status"))); s != "" {
		status := domain.OfferStatus(s)
		if !status.Valid() {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "unknown status")
			return
		}
		filter.Status = &status
	}
	params := helpers.ParsePagination(r)
	list, total, err := c.Service.ListOffers(r.Context(), ownerID, filter, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if list == nil {
		list = []*domain.Offer{}
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListOffersResponse{Items: list, Pagination: meta})
}

// GetOffer godoc
// @Summary Get an offer
// @Tags offers
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Success 200 {object} controllers.OfferSuccessResponse
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /offers/{offerID} [get]
func (c *OfferController) GetOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	offer, err := c.Service.GetOffer(r.Context(), r.PathValue("offerID"), ownerID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, offer)
}

// SaveOffer godoc
// @Summary Save a draft offer
// @Description Replaces the draft's content and items and recomputes totals. Only DRAFT offers can be edited. Changing the recipient email resets its verification.
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Param body body DraftRequest true "Draft content"
// @Success 200 {object} controllers.OfferSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: illegal_transition"
// @Router /offers/{offerID} [put]
func (c *OfferController) SaveOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var req DraftRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	offer, err := c.Service.SaveDraft(r.Context(), r.PathValue("offerID"), ownerID, req.toInput())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, offer)
}

// DeleteOffer godoc
// @Summary Delete a draft offer
// @Tags offers
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Success 204
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: illegal_transition"
// @Router /offers/{offerID} [delete]
func (c *OfferController) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	if err := c.Service.DeleteDraft(r.Context(), r.PathValue("offerID"), ownerID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendOffer godoc
// @Summary Send an offer
// @Description Moves a DRAFT offer to SENT, issues its link and then attempts the document upload and the recipient notification. Side-effect failures are reported in the result, never as errors. Sending an offer that is no longer a draft reports already_sent.
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Param body body SendOfferRequest false "Optional recipient override and link validity"
// @Success 200 {object} controllers.SendOfferSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 402 {object} helpers.APIResponse "error.code: quota_exceeded"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /offers/{offerID}/send [post]
func (c *OfferController) SendOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var req SendOfferRequest
	if !helpers.DecodeOptionalAndValidate(w, r, &req) {
		return
	}
	result, err := c.Service.Send(r.Context(), r.PathValue("offerID"), ownerID, domain.SendOptions{
		RecipientEmail: req.RecipientEmail,
		Validity:       req.toValidity(),
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// WithdrawOffer godoc
// @Summary Withdraw an offer
// @Tags offers
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Success 200 {object} controllers.OfferSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: illegal_transition"
// @Router /offers/{offerID}/withdraw [post]
func (c *OfferController) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	offer, err := c.Service.Withdraw(r.Context(), r.PathValue("offerID"), ownerID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, offer)
}

// CancelAcceptance godoc
// @Summary Cancel an acceptance
// @Description Reverts an ACCEPTED offer to SENT while the cancellation window is open.
// @Tags offers
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Success 200 {object} controllers.OfferSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: cancellation_window_closed or illegal_transition"
// @Router /offers/{offerID}/cancel-acceptance [post]
func (c *OfferController) CancelAcceptance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	offer, err := c.Service.CancelAcceptance(r.Context(), r.PathValue("offerID"), ownerID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, offer)
}

// ReissueLink godoc
// @Summary Reissue the offer link
// @Description Issues a new public/accept token pair for a SENT or VIEWED offer. The previous accept link stops working.
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param offerID path string true "Offer ID"
// @Param body body LinkValidityRequest false "Link validity"
// @Success 200 {object} controllers.IssuedLinkSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: illegal_transition"
// @Router /offers/{offerID}/link [post]
func (c *OfferController) ReissueLink(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var req LinkValidityRequest
	if !helpers.DecodeOptionalAndValidate(w, r, &req) {
		return
	}
	link, err := c.Service.ReissueLink(r.Context(), r.PathValue("offerID"), ownerID, req.toValidity())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, link)
}

// GetQuota godoc
// @Summary Get the monthly send quota
// @Description Reports the caller's plan, offers counted this UTC month and the remaining allowance.
// @Tags offers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.QuotaSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /quota [get]
func (c *OfferController) GetQuota(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	status, err := c.Service.QuotaStatus(r.Context(), ownerID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, status)
}
