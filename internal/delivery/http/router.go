package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"quoteflow/internal/delivery/http/controllers"
	"quoteflow/internal/delivery/http/middleware"
	"quoteflow/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	offerController *controllers.OfferController,
	publicController *controllers.PublicOfferController,
	verifier domain.TokenVerifier,
	logger *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)

	// Owner
	mux.HandleFunc("POST /offers", auth(offerController.CreateOffer))
	mux.HandleFunc("GET /offers", auth(offerController.ListOffers))
	mux.HandleFunc("GET /offers/{offerID}", auth(offerController.GetOffer))
	mux.HandleFunc("PUT /offers/{offerID}", auth(offerController.SaveOffer))
	mux.HandleFunc("DELETE /offers/{offerID}", auth(offerController.DeleteOffer))
	mux.HandleFunc("POST /offers/{offerID}/send", auth(offerController.SendOffer))
	mux.HandleFunc("POST /offers/{offerID}/withdraw", auth(offerController.WithdrawOffer))
	mux.HandleFunc("POST /offers/{offerID}/cancel-acceptance", auth(offerController.CancelAcceptance))
	mux.HandleFunc("POST /offers/{offerID}/link", auth(offerController.ReissueLink))
	mux.HandleFunc("GET /quota", auth(offerController.GetQuota))

	// Recipient links
	mux.HandleFunc("GET /offer/{publicToken}", publicController.OpenOffer)
	mux.HandleFunc("POST /offer/{publicToken}/accept", publicController.AcceptOffer)
	mux.HandleFunc("POST /offer/{publicToken}/reject", publicController.RejectOffer)
	mux.HandleFunc("POST /offer/{publicToken}/undo", publicController.UndoAcceptance)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router with request logging and CORS.
func NewHandler(mux *http.ServeMux, logger *slog.Logger, allowedOrigins []string) http.Handler {
	return middleware.LoggingMiddleware(logger, middleware.CORS(allowedOrigins, mux))
}
