package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"quoteflow/internal/delivery/http/helpers"
	"quoteflow/internal/domain"
)

// acceptTokenParam is the only query parameter that may carry the accept token.
const acceptTokenParam = "t"

// DecisionResponse is the data payload of the recipient decision endpoints.
type DecisionResponse struct {
	Status domain.OfferStatus `json:"status"`
}

// PublicOfferSuccessResponse is the success response envelope for GET /offer/{publicToken} (200).
type PublicOfferSuccessResponse struct {
	Data  *domain.PublicOffer `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// DecisionSuccessResponse is the success response envelope for the recipient decision endpoints (200).
type DecisionSuccessResponse struct {
	Data  DecisionResponse  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// PublicOfferController handles the unauthenticated recipient link endpoints.
type PublicOfferController struct {
	Logger  *slog.Logger
	Service domain.OfferService
}

// NewPublicOfferController creates a PublicOfferController with the given logger and service.
func NewPublicOfferController(logger *slog.Logger, svc domain.OfferService) *PublicOfferController {
	return &PublicOfferController{
		Logger:  logger,
		Service: svc,
	}
}

// OpenOffer godoc
// @Summary Open an offer link
// @Description Returns the recipient view of an offer. The first view of a SENT offer marks it VIEWED. With a valid accept token the response reports whether the recipient can act.
// @Tags recipient
// @Produce json
// @Param publicToken path string true "Public token"
// @Param t query string false "Accept token"
// @Success 200 {object} controllers.PublicOfferSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: token_invalid"
// @Failure 410 {object} helpers.APIResponse "error.code: token_expired"
// @Router /offer/{publicToken} [get]
func (c *PublicOfferController) OpenOffer(w http.ResponseWriter, r *http.Request) {
	view, err := c.Service.Open(r.Context(), r.PathValue("publicToken"), r.URL.Query().Get(acceptTokenParam))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// AcceptOffer godoc
// @Summary Accept an offer
// @Description Accepts a SENT or VIEWED offer. Repeating the call on a decided offer returns its current status.
// @Tags recipient
// @Produce json
// @Param publicToken path string true "Public token"
// @Param t query string true "Accept token"
// @Success 200 {object} controllers.DecisionSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: token_invalid"
// @Failure 409 {object} helpers.APIResponse "error.code: illegal_transition"
// @Failure 410 {object} helpers.APIResponse "error.code: token_expired"
// @Router /offer/{publicToken}/accept [post]
func (c *PublicOfferController) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Service.Accept)
}

// RejectOffer godoc
// @Summary Reject an offer
// @Tags recipient
// @Produce json
// @Param publicToken path string true "Public token"
// @Param t query string true "Accept token"
// @Success 200 {object} controllers.DecisionSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: token_invalid"
// @Failure 410 {object} helpers.APIResponse "error.code: token_expired"
// @Router /offer/{publicToken}/reject [post]
func (c *PublicOfferController) RejectOffer(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Service.Reject)
}

// UndoAcceptance godoc
// @Summary Undo an acceptance
// @Description Reverts the recipient's acceptance while the cancellation window is open.
// @Tags recipient
// @Produce json
// @Param publicToken path string true "Public token"
// @Param t query string true "Accept token"
// @Success 200 {object} controllers.DecisionSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: token_invalid"
// @Failure 409 {object} helpers.APIResponse "error.code: cancellation_window_closed or illegal_transition"
// @Router /offer/{publicToken}/undo [post]
func (c *PublicOfferController) UndoAcceptance(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Service.UndoAcceptance)
}

func (c *PublicOfferController) decide(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, publicToken, acceptToken string) (domain.OfferStatus, error)) {
	status, err := action(r.Context(), r.PathValue("publicToken"), r.URL.Query().Get(acceptTokenParam))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DecisionResponse{Status: status})
}
