package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quoteflow/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeClock is a settable clock shared by the services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeOfferRepo is an in-memory OfferRepository whose status writes are conditional,
// like the Postgres implementation.
type fakeOfferRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Offer
	nextID  int
	writes  int
	getErr  error
	markErr error
	// beforeMarkSent runs inside MarkSent before the conditional check.
	beforeMarkSent func()
	// beforeTransition runs at the start of TransitionStatus, outside the lock.
	beforeTransition func(domain.StatusTransition)
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{byID: make(map[string]*domain.Offer), nextID: 1}
}

func copyOffer(o *domain.Offer) *domain.Offer {
	cp := *o
	cp.Items = append([]*domain.OfferItem(nil), o.Items...)
	return &cp
}

func (f *fakeOfferRepo) put(o *domain.Offer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[o.ID] = copyOffer(o)
}

func (f *fakeOfferRepo) stored(id string) *domain.Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.byID[id]; ok {
		return copyOffer(o)
	}
	return nil
}

func (f *fakeOfferRepo) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeOfferRepo) Create(ctx context.Context, o *domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = fmt.Sprintf("offer-%d", f.nextID)
	f.nextID++
	for _, it := range o.Items {
		it.OfferID = o.ID
	}
	f.byID[o.ID] = copyOffer(o)
	f.writes++
	return nil
}

func (f *fakeOfferRepo) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if o, ok := f.byID[id]; ok {
		return copyOffer(o), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOfferRepo) GetByPublicToken(ctx context.Context, publicToken string) (*domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.PublicToken != nil && *o.PublicToken == publicToken {
			return copyOffer(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOfferRepo) ListByOwner(ctx context.Context, ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Offer
	for _, o := range f.byID {
		if o.OwnerID != ownerID {
			continue
		}
		if !filter.Matches(o) {
			continue
		}
		out = append(out, copyOffer(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeOfferRepo) SaveDraft(ctx context.Context, o *domain.Offer) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[o.ID]
	if !ok || cur.Status != domain.OfferStatusDraft {
		return false, nil
	}
	f.byID[o.ID] = copyOffer(o)
	f.writes++
	return true, nil
}

func (f *fakeOfferRepo) DeleteDraft(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || cur.Status != domain.OfferStatusDraft {
		return false, nil
	}
	delete(f.byID, id)
	f.writes++
	return true, nil
}

func (f *fakeOfferRepo) MarkSent(ctx context.Context, id string, stamp domain.SentStamp) (bool, error) {
	if f.beforeMarkSent != nil {
		f.beforeMarkSent()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	cur, ok := f.byID[id]
	if !ok || cur.Status != domain.OfferStatusDraft {
		return false, nil
	}
	applySentStamp(cur, stamp)
	f.writes++
	return true, nil
}

func (f *fakeOfferRepo) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	if hook := f.beforeTransition; hook != nil {
		f.beforeTransition = nil
		hook(t)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[t.OfferID]
	if !ok || !t.Allows(cur) {
		return false, nil
	}
	at := t.At
	cur.Status = t.To
	cur.UpdatedAt = at
	switch {
	case t.To == domain.OfferStatusAccepted:
		cur.AcceptedAt = &at
	case t.To == domain.OfferStatusRejected:
		cur.RejectedAt = &at
	case t.From == domain.OfferStatusAccepted && t.To == domain.OfferStatusSent:
		cur.AcceptedAt = nil
	}
	f.writes++
	return true, nil
}

func (f *fakeOfferRepo) ReplaceLink(ctx context.Context, id string, stamp domain.LinkStamp) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || !cur.Status.Awaiting() {
		return false, nil
	}
	pt, hash := stamp.PublicToken, stamp.AcceptTokenHash
	cur.PublicToken = &pt
	cur.AcceptTokenHash = &hash
	cur.ValidUntil = stamp.ValidUntil
	cur.UpdatedAt = stamp.UpdatedAt
	f.writes++
	return true, nil
}

func (f *fakeOfferRepo) MarkEmailVerified(ctx context.Context, id string, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.RecipientEmail != nil && *cur.RecipientEmail == email {
		cur.EmailVerified = true
	}
	return nil
}

func (f *fakeOfferRepo) CountQuotaConsuming(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.byID {
		if o.OwnerID != ownerID || o.SentAt == nil {
			continue
		}
		if o.SentAt.Before(from) || !o.SentAt.Before(to) {
			continue
		}
		for _, s := range domain.QuotaConsumingStatuses {
			if o.Status == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakeOfferRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Offer
	for _, o := range f.byID {
		if o.Status.Awaiting() && o.ValidUntil != nil && o.ValidUntil.Before(now) {
			out = append(out, copyOffer(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeAccountRepo implements domain.AccountRepository for tests.
type fakeAccountRepo struct {
	byID map[string]*domain.Account
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	f := &fakeAccountRepo{byID: make(map[string]*domain.Account)}
	for _, a := range accounts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

// fakeEmailService records notifications.
type fakeEmailService struct {
	mu   sync.Mutex
	sent []*domain.OfferSentEmailData
	err  error
}

func (f *fakeEmailService) SendOfferNotification(ctx context.Context, data *domain.OfferSentEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeEmailService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeRenderer returns a fixed document.
type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(offer *domain.Offer, senderName string) (*domain.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{Key: "offers/" + offer.ID + ".html", ContentType: "text/html", Body: []byte(offer.Title)}, nil
}

// fakeStore records uploads.
type fakeStore struct {
	mu   sync.Mutex
	puts []*domain.Document
	err  error
}

func (f *fakeStore) Put(ctx context.Context, doc *domain.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, doc)
	return "https://docs.example.com/" + doc.Key, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// mapCache is a trivial domain.Cache.
type mapCache struct {
	mu      sync.Mutex
	items   map[string]any
	deleted []string
}

func newMapCache() *mapCache { return &mapCache{items: make(map[string]any)} }

func (c *mapCache) Get(ctx context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *mapCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.deleted = append(c.deleted, key)
}

var errBoom = errors.New("boom")

// harness wires an offer service over in-memory fakes.
type harness struct {
	clock    *fakeClock
	repo     *fakeOfferRepo
	accounts *fakeAccountRepo
	email    *fakeEmailService
	renderer *fakeRenderer
	store    *fakeStore
	cache    *mapCache
	tokens   domain.TokenAuthority
	svc      domain.OfferService
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newHarness() *harness {
	h := &harness{
		clock: newFakeClock(testNow),
		repo:  newFakeOfferRepo(),
		accounts: newFakeAccountRepo(
			&domain.Account{ID: "acct-free", Name: "Free Co", Plan: domain.PlanFree},
			&domain.Account{ID: "acct-pro", Name: "Pro Co", Plan: domain.PlanPro},
		),
		email:    &fakeEmailService{},
		renderer: &fakeRenderer{},
		store:    &fakeStore{},
		cache:    newMapCache(),
	}
	h.tokens = NewTokenAuthority("https://app.example.com", bcrypt.MinCost, h.clock.Now)
	h.svc = NewOfferService(OfferServiceDeps{
		Offers:    h.repo,
		Accounts:  h.accounts,
		Gate:      NewEntitlementGate(3),
		Tokens:    h.tokens,
		Lifecycle: NewLifecycle(10 * time.Minute),
		Documents: h.renderer,
		Store:     h.store,
		Email:     h.email,
		Cache:     h.cache,
		Logger:    testLogger,
		Now:       h.clock.Now,
	}, OfferServiceConfig{DefaultLinkDays: 30, ContextTimeout: 5 * time.Second, CacheTTL: time.Minute, SweepBatchSize: 2})
	return h
}

func strPtr(s string) *string { return &s }
