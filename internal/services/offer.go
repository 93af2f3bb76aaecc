package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"quoteflow/internal/domain"
)

const (
	offerCachePrefix = "offer:v1:"
	quotaCachePrefix = "quota:v1:"

	defaultSweepBatchSize = 100
	// maxTransitionAttempts bounds re-evaluation after losing a conditional update.
	maxTransitionAttempts = 3
)

var (
	emailRegexp    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	currencyRegexp = regexp.MustCompile(`^[A-Z]{3}$`)
	maxVATRate     = decimal.NewFromInt(100)
	// Column ranges of offer_items.quantity/unit_price_net and of the stored totals.
	maxItemValue  = decimal.New(1, 10)
	maxMoneyValue = decimal.New(1, 12)
)

const (
	itemPlaces = 4
	vatPlaces  = 2
)

// OfferServiceConfig holds the tunables of the offer service.
type OfferServiceConfig struct {
	DefaultLinkDays int
	ContextTimeout  time.Duration
	CacheTTL        time.Duration
	SweepBatchSize  int
}

// OfferServiceDeps are the collaborators of the offer service. Documents, Store,
// Email and Cache may be nil; the matching side effect is then skipped.
type OfferServiceDeps struct {
	Offers    domain.OfferRepository
	Accounts  domain.AccountRepository
	Gate      domain.EntitlementGate
	Tokens    domain.TokenAuthority
	Lifecycle Lifecycle
	Documents domain.DocumentRenderer
	Store     domain.DocumentStore
	Email     domain.EmailService
	Cache     domain.Cache
	Logger    *slog.Logger
	Now       func() time.Time
}

type offerService struct {
	offers    domain.OfferRepository
	accounts  domain.AccountRepository
	gate      domain.EntitlementGate
	tokens    domain.TokenAuthority
	lifecycle Lifecycle
	documents domain.DocumentRenderer
	store     domain.DocumentStore
	email     domain.EmailService
	cache     domain.Cache
	logger    *slog.Logger
	now       func() time.Time

	defaultLinkDays int
	contextTimeout  time.Duration
	cacheTTL        time.Duration
	sweepBatchSize  int
}

// NewOfferService wires the offer lifecycle engine.
func NewOfferService(deps OfferServiceDeps, cfg OfferServiceConfig) domain.OfferService {
	s := &offerService{
		offers:          deps.Offers,
		accounts:        deps.Accounts,
		gate:            deps.Gate,
		tokens:          deps.Tokens,
		lifecycle:       deps.Lifecycle,
		documents:       deps.Documents,
		store:           deps.Store,
		email:           deps.Email,
		cache:           deps.Cache,
		logger:          deps.Logger,
		now:             deps.Now,
		defaultLinkDays: cfg.DefaultLinkDays,
		contextTimeout:  cfg.ContextTimeout,
		cacheTTL:        cfg.CacheTTL,
		sweepBatchSize:  cfg.SweepBatchSize,
	}
	if s.gate == nil {
		s.gate = NewEntitlementGate(DefaultFreeMonthlyLimit)
	}
	if s.lifecycle.cancellationWindow <= 0 {
		s.lifecycle = NewLifecycle(DefaultCancellationWindow)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.contextTimeout <= 0 {
		s.contextTimeout = 10 * time.Second
	}
	if s.sweepBatchSize <= 0 {
		s.sweepBatchSize = defaultSweepBatchSize
	}
	return s
}

func (s *offerService) CreateDraft(ctx context.Context, ownerID string, input domain.DraftInput) (*domain.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if ownerID == "" {
		return nil, fmt.Errorf("%w: offer owner is required", domain.ErrInvalidInput)
	}
	input, err := normalizeDraftInput(input)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	offer := &domain.Offer{
		OwnerID:   ownerID,
		Status:    domain.OfferStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyDraftInput(offer, input)
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return offer, nil
}

func (s *offerService) SaveDraft(ctx context.Context, offerID, ownerID string, input domain.DraftInput) (*domain.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	input, err := normalizeDraftInput(input)
	if err != nil {
		return nil, err
	}
	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferStatusDraft {
		return nil, notDraft(offer.Status)
	}
	applyDraftInput(offer, input)
	offer.UpdatedAt = s.now().UTC()
	ok, err := s.offers.SaveDraft(ctx, offer)
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	if !ok {
		return nil, s.currentNotDraft(ctx, offer.ID)
	}
	s.invalidateOffer(ctx, offer.ID)
	return offer, nil
}

func (s *offerService) DeleteDraft(ctx context.Context, offerID, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return err
	}
	if offer.Status != domain.OfferStatusDraft {
		return notDraft(offer.Status)
	}
	ok, err := s.offers.DeleteDraft(ctx, offer.ID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if !ok {
		return s.currentNotDraft(ctx, offer.ID)
	}
	s.invalidateOffer(ctx, offer.ID)
	return nil
}

func (s *offerService) GetOffer(ctx context.Context, offerID, ownerID string) (*domain.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if cached, ok := s.cacheGet(ctx, offerCachePrefix+offerID); ok {
		if offer, ok := cached.(*domain.Offer); ok {
			if offer.OwnerID != ownerID {
				return nil, domain.ErrForbidden
			}
			cp := *offer
			return &cp, nil
		}
	}
	offer, err := s.loadOwned(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}
	if offer.Status.Final() {
		cp := *offer
		s.cacheSet(ctx, offerCachePrefix+offerID, &cp)
	}
	return offer, nil
}

func (s *offerService) ListOffers(ctx context.Context, ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *filter.Status)
	}
	offers, total, err := s.offers.ListByOwner(ctx, ownerID, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	if offers == nil {
		offers = []*domain.Offer{}
	}
	return offers, total, nil
}

func (s *offerService) QuotaStatus(ctx context.Context, ownerID string) (*domain.QuotaStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	account, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	used, err := s.cachedMonthlyCount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &domain.QuotaStatus{
		Plan:    account.Plan,
		Used:    used,
		Quota:   s.gate.RemainingQuota(account.Plan, used),
		CanSend: s.gate.CanSend(account.Plan, used),
	}, nil
}

// monthlyCount always reads the source of truth; the send gate must never see a cached count.
func (s *offerService) monthlyCount(ctx context.Context, ownerID string) (int, error) {
	from, to := monthWindow(s.now())
	n, err := s.offers.CountQuotaConsuming(ctx, ownerID, from, to)
	if err != nil {
		return 0, fmt.Errorf("count offers this month: %w", err)
	}
	return n, nil
}

// cachedMonthlyCount serves the informational quota read. The key carries the month so a
// cached count never survives a month boundary.
func (s *offerService) cachedMonthlyCount(ctx context.Context, ownerID string) (int, error) {
	key := quotaCacheKey(ownerID, s.now())
	if cached, ok := s.cacheGet(ctx, key); ok {
		if n, ok := cached.(int); ok {
			return n, nil
		}
	}
	n, err := s.monthlyCount(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	s.cacheSet(ctx, key, n)
	return n, nil
}

func (s *offerService) loadOwned(ctx context.Context, offerID, ownerID string) (*domain.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if offer.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return offer, nil
}

func (s *offerService) currentNotDraft(ctx context.Context, offerID string) error {
	current, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get offer: %w", err)
	}
	return notDraft(current.Status)
}

func notDraft(status domain.OfferStatus) error {
	return fmt.Errorf("%w: offer is %s, only drafts can be edited or deleted", domain.ErrIllegalTransition, status)
}

func (s *offerService) invalidateOffer(ctx context.Context, offerID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, offerCachePrefix+offerID)
}

// invalidate drops the cached offer and the owner's cached quota for the current month.
func (s *offerService) invalidate(ctx context.Context, offer *domain.Offer) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, offerCachePrefix+offer.ID)
	s.cache.Delete(ctx, quotaCacheKey(offer.OwnerID, s.now()))
}

func (s *offerService) cacheGet(ctx context.Context, key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

func (s *offerService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, value, s.cacheTTL)
}

func quotaCacheKey(ownerID string, now time.Time) string {
	return quotaCachePrefix + ownerID + ":" + now.UTC().Format("2006-01")
}

// monthWindow returns [first instant of the UTC month containing now, first instant of the next).
func monthWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func normalizeDraftInput(in domain.DraftInput) (domain.DraftInput, error) {
	var errs []string
	in.Title = strings.TrimSpace(in.Title)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if !currencyRegexp.MatchString(in.Currency) {
		errs = append(errs, "currency must be a three-letter code")
	}
	in.RecipientEmail = domain.NormalizeEmail(in.RecipientEmail)
	if in.RecipientEmail != nil && !emailRegexp.MatchString(*in.RecipientEmail) {
		errs = append(errs, "invalid recipient email format")
	}
	if in.ClientID != nil && strings.TrimSpace(*in.ClientID) == "" {
		in.ClientID = nil
	}
	for i := range in.Items {
		it := &in.Items[i]
		it.Name = strings.TrimSpace(it.Name)
		it.Unit = strings.TrimSpace(it.Unit)
		if it.Name == "" {
			errs = append(errs, fmt.Sprintf("items[%d]: name is required", i))
		}
		if it.Quantity.IsNegative() {
			errs = append(errs, fmt.Sprintf("items[%d]: quantity must not be negative", i))
		}
		if !fitsColumn(it.Quantity, itemPlaces, maxItemValue) {
			errs = append(errs, fmt.Sprintf("items[%d]: quantity must be below 10^10 with at most %d decimal places", i, itemPlaces))
		}
		if it.UnitPriceNet.IsNegative() {
			errs = append(errs, fmt.Sprintf("items[%d]: unit price must not be negative", i))
		}
		if !fitsColumn(it.UnitPriceNet, itemPlaces, maxItemValue) {
			errs = append(errs, fmt.Sprintf("items[%d]: unit price must be below 10^10 with at most %d decimal places", i, itemPlaces))
		}
		if it.VATRate.IsNegative() || it.VATRate.GreaterThan(maxVATRate) {
			errs = append(errs, fmt.Sprintf("items[%d]: vat rate must be between 0 and 100", i))
		}
		if !it.VATRate.Equal(it.VATRate.Truncate(vatPlaces)) {
			errs = append(errs, fmt.Sprintf("items[%d]: vat rate must have at most %d decimal places", i, vatPlaces))
		}
	}
	if len(errs) == 0 && !CalculateTotals(in.Items).Gross.LessThan(maxMoneyValue) {
		errs = append(errs, "offer total must be below 10^12")
	}
	if len(errs) > 0 {
		return in, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	return in, nil
}

// fitsColumn reports whether d has at most places decimals and an absolute value below limit.
func fitsColumn(d decimal.Decimal, places int32, limit decimal.Decimal) bool {
	return d.Equal(d.Truncate(places)) && d.Abs().LessThan(limit)
}

// applyDraftInput copies validated content into offer and recomputes the monetary snapshot.
func applyDraftInput(offer *domain.Offer, in domain.DraftInput) {
	offer.Title = in.Title
	offer.ClientID = in.ClientID
	offer.Currency = in.Currency
	offer.ApplyRecipientEmail(in.RecipientEmail)

	totals := CalculateTotals(in.Items)
	offer.NetTotal = totals.Net
	offer.VATTotal = totals.VAT
	offer.GrossTotal = totals.Gross
	offer.Items = lo.Map(in.Items, func(it domain.DraftItemInput, i int) *domain.OfferItem {
		return &domain.OfferItem{
			OfferID:      offer.ID,
			Position:     i,
			Name:         it.Name,
			Unit:         it.Unit,
			Quantity:     it.Quantity,
			UnitPriceNet: it.UnitPriceNet,
			VATRate:      it.VATRate,
			LineNetTotal: lineNetTotal(it),
		}
	})
}
