// Package app wires configuration, storage, adapters and the offer service into a runnable server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"quoteflow/config"
	"quoteflow/internal/adapters/auth"
	"quoteflow/internal/adapters/cache"
	"quoteflow/internal/adapters/document"
	"quoteflow/internal/adapters/email"
	"quoteflow/internal/adapters/storage"
	deliveryhttp "quoteflow/internal/delivery/http"
	"quoteflow/internal/delivery/http/controllers"
	"quoteflow/internal/domain"
	"quoteflow/internal/repository/postgres"
	"quoteflow/internal/services"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config   *config.Config
	logger   *slog.Logger
	offers   domain.OfferService
	verifier domain.TokenVerifier
}

// New builds the application on an open database. Email and document providers are
// chosen from configuration; the noop providers need no credentials.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}
	store, err := storage.NewDocumentStore(storage.Config{
		Provider: cfg.Document.Provider,
		S3: storage.S3Config{
			Region:          cfg.Email.AWSRegion,
			AccessKeyID:     cfg.Email.AWSAccessKeyID,
			SecretAccessKey: cfg.Email.AWSSecretAccessKey,
			Bucket:          cfg.Document.Bucket,
			Endpoint:        cfg.Document.Endpoint,
			KeyPrefix:       cfg.Document.KeyPrefix,
			URLTTL:          cfg.Document.URLTTL,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("document store init error: %w", err)
	}

	offers := services.NewOfferService(services.OfferServiceDeps{
		Offers:    postgres.NewOfferRepository(db),
		Accounts:  postgres.NewAccountRepository(db),
		Gate:      services.NewEntitlementGate(cfg.FreeMonthlyOfferLimit),
		Tokens:    services.NewTokenAuthority(cfg.PublicBaseURL, cfg.AcceptTokenHashCost, nil),
		Lifecycle: services.NewLifecycle(cfg.AcceptanceCancelWindow),
		Documents: document.NewHTMLRenderer(),
		Store:     store,
		Email:     services.NewEmailService(mailer, email.NewTemplateRenderer(), logger),
		Cache:     cache.NewInMemoryCache(cfg.CacheTTL),
		Logger:    logger,
	}, services.OfferServiceConfig{
		DefaultLinkDays: cfg.DefaultLinkExpiryDays,
		ContextTimeout:  cfg.RequestTimeout,
		CacheTTL:        cfg.CacheTTL,
		SweepBatchSize:  cfg.ExpirySweepBatchSize,
	})

	return &App{
		config:   cfg,
		logger:   logger,
		offers:   offers,
		verifier: auth.NewJWTVerifier(cfg.JWTSecret),
	}, nil
}

// Offers exposes the offer service, e.g. for the expiry sweep command.
func (a *App) Offers() domain.OfferService {
	return a.offers
}

// Handler returns the HTTP handler with all routes and middleware.
func (a *App) Handler() http.Handler {
	mux := deliveryhttp.NewRouter(
		controllers.NewOfferController(a.logger, a.offers),
		controllers.NewPublicOfferController(a.logger, a.offers),
		a.verifier,
		a.logger,
	)
	return deliveryhttp.NewHandler(mux, a.logger, a.config.CORSAllowedOrigins)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
