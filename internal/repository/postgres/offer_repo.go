package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"quoteflow/internal/domain"
)

const offerColumns = `id, owner_id, client_id, title, status, currency, net_total, vat_total, gross_total,
		recipient_email, email_verified, public_token, accept_token_hash, valid_until,
		created_at, updated_at, sent_at, accepted_at, rejected_at`

type offerRepository struct {
	DB *sql.DB
}

func NewOfferRepository(db *sql.DB) domain.OfferRepository {
	return &offerRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	o := &domain.Offer{}
	var clientID, recipient, publicToken, acceptHash sql.NullString
	var validUntil, sentAt, acceptedAt, rejectedAt sql.NullTime
	var status string
	err := row.Scan(
		&o.ID, &o.OwnerID, &clientID, &o.Title, &status, &o.Currency, &o.NetTotal, &o.VATTotal, &o.GrossTotal,
		&recipient, &o.EmailVerified, &publicToken, &acceptHash, &validUntil,
		&o.CreatedAt, &o.UpdatedAt, &sentAt, &acceptedAt, &rejectedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OfferStatus(status)
	o.ClientID = nullString(clientID)
	o.RecipientEmail = nullString(recipient)
	o.PublicToken = nullString(publicToken)
	o.AcceptTokenHash = nullString(acceptHash)
	o.ValidUntil = nullTime(validUntil)
	o.SentAt = nullTime(sentAt)
	o.AcceptedAt = nullTime(acceptedAt)
	o.RejectedAt = nullTime(rejectedAt)
	o.Items = []*domain.OfferItem{}
	return o, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func (r *offerRepository) Create(ctx context.Context, o *domain.Offer) error {
	return WithTx(ctx, r.DB, nil, func(ctx context.Context, tx DBTX) error {
		query := `
			INSERT INTO offers (owner_id, client_id, title, status, currency, net_total, vat_total, gross_total,
				recipient_email, email_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, query,
			o.OwnerID, o.ClientID, o.Title, string(o.Status), o.Currency, o.NetTotal, o.VATTotal, o.GrossTotal,
			o.RecipientEmail, o.EmailVerified, o.CreatedAt, o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, o.ID, o.Items)
	})
}

func insertItems(ctx context.Context, tx DBTX, offerID string, items []*domain.OfferItem) error {
	query := `
		INSERT INTO offer_items (offer_id, position, name, unit, quantity, unit_price_net, vat_rate, line_net_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	for _, it := range items {
		it.OfferID = offerID
		err := tx.QueryRowContext(ctx, query,
			offerID, it.Position, it.Name, it.Unit, it.Quantity, it.UnitPriceNet, it.VATRate, it.LineNetTotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert offer item %d: %w", it.Position, err)
		}
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *offerRepository) GetByPublicToken(ctx context.Context, publicToken string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE public_token = $1`
	return r.getOne(ctx, query, publicToken)
}

func (r *offerRepository) getOne(ctx context.Context, query string, arg any) (*domain.Offer, error) {
	o, err := scanOffer(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, []*domain.Offer{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *offerRepository) loadItems(ctx context.Context, offers []*domain.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	byID := lo.KeyBy(offers, func(o *domain.Offer) string { return o.ID })
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, offer_id, position, name, unit, quantity, unit_price_net, vat_rate, line_net_total
		FROM offer_items
		WHERE offer_id = ANY($1)
		ORDER BY offer_id, position
	`, pq.Array(lo.Map(offers, func(o *domain.Offer, _ int) string { return o.ID })))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		it := &domain.OfferItem{}
		if err := rows.Scan(&it.ID, &it.OfferID, &it.Position, &it.Name, &it.Unit, &it.Quantity, &it.UnitPriceNet, &it.VATRate, &it.LineNetTotal); err != nil {
			return err
		}
		if o, ok := byID[it.OfferID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// ListByOwner returns one page of the owner's offers, newest first, with their items.
func (r *offerRepository) ListByOwner(ctx context.Context, ownerID string, filter domain.OfferListFilter, params domain.PaginationParams) ([]*domain.Offer, int, error) {
	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*domain.Offer{}, 0, nil
	}

	args = append(args, params.PageSize, params.Offset())
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		offerColumns, cond, len(args)-1, len(args))
	offers, err := r.queryOffers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadItems(ctx, offers); err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

func (r *offerRepository) queryOffers(ctx context.Context, query string, args ...any) ([]*domain.Offer, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	offers := make([]*domain.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// SaveDraft rewrites the offer content and replaces its items, only while it is still a draft.
func (r *offerRepository) SaveDraft(ctx context.Context, o *domain.Offer) (bool, error) {
	saved := false
	err := WithTx(ctx, r.DB, nil, func(ctx context.Context, tx DBTX) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE offers
			SET title = $2, client_id = $3, currency = $4, net_total = $5, vat_total = $6, gross_total = $7,
				recipient_email = $8, email_verified = $9, updated_at = $10
			WHERE id = $1 AND status = 'draft'
		`, o.ID, o.Title, o.ClientID, o.Currency, o.NetTotal, o.VATTotal, o.GrossTotal,
			o.RecipientEmail, o.EmailVerified, o.UpdatedAt)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM offer_items WHERE offer_id = $1`, o.ID); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

func (r *offerRepository) DeleteDraft(ctx context.Context, id string) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM offers WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// MarkSent is the DRAFT -> SENT conditional write. Only one concurrent caller can see true.
func (r *offerRepository) MarkSent(ctx context.Context, id string, stamp domain.SentStamp) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
		UPDATE offers
		SET status = 'sent', sent_at = $2, updated_at = $2, public_token = $3, accept_token_hash = $4,
			valid_until = $5, recipient_email = $6, email_verified = $7
		WHERE id = $1 AND status = 'draft'
	`, id, stamp.SentAt, stamp.PublicToken, stamp.AcceptTokenHash, stamp.ValidUntil, stamp.RecipientEmail, stamp.EmailVerified)
	if err != nil {
		var perr *pq.Error
		if errors.As(err, &perr) && perr.Code == "23505" {
			return false, fmt.Errorf("public token collision: %w", err)
		}
		return false, err
	}
	return affected(result)
}

// TransitionStatus applies t only while the stored row still satisfies t.From and the optional guards.
func (r *offerRepository) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	set := []string{"status = $3", "updated_at = $4"}
	switch {
	case t.To == domain.OfferStatusAccepted:
		set = append(set, "accepted_at = $4")
	case t.To == domain.OfferStatusRejected:
		set = append(set, "rejected_at = $4")
	case t.From == domain.OfferStatusAccepted && t.To == domain.OfferStatusSent:
		set = append(set, "accepted_at = NULL")
	}
	where := []string{"id = $1", "status = $2"}
	args := []any{t.OfferID, string(t.From), string(t.To), t.At}
	if t.ValidBefore != nil {
		args = append(args, *t.ValidBefore)
		where = append(where, fmt.Sprintf("valid_until IS NOT NULL AND valid_until < $%d", len(args)))
	}
	if t.AcceptTokenHash != nil {
		args = append(args, *t.AcceptTokenHash)
		where = append(where, fmt.Sprintf("accept_token_hash = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE offers SET %s WHERE %s`, strings.Join(set, ", "), strings.Join(where, " AND "))
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// ReplaceLink swaps in a new token pair while the offer awaits a decision.
func (r *offerRepository) ReplaceLink(ctx context.Context, id string, stamp domain.LinkStamp) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
		UPDATE offers
		SET public_token = $2, accept_token_hash = $3, valid_until = $4, updated_at = $5
		WHERE id = $1 AND status IN ('sent', 'viewed')
	`, id, stamp.PublicToken, stamp.AcceptTokenHash, stamp.ValidUntil, stamp.UpdatedAt)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// MarkEmailVerified sets the flag only if the recipient address is still email.
func (r *offerRepository) MarkEmailVerified(ctx context.Context, id string, email string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE offers SET email_verified = TRUE WHERE id = $1 AND recipient_email = $2`, id, email)
	return err
}

func (r *offerRepository) CountQuotaConsuming(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	statuses := lo.Map(domain.QuotaConsumingStatuses, func(s domain.OfferStatus, _ int) string { return string(s) })
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM offers
		WHERE owner_id = $1 AND status = ANY($2) AND sent_at >= $3 AND sent_at < $4
	`, ownerID, pq.Array(statuses), from, to).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListOverdue returns awaiting offers whose valid_until is before now, oldest first. Items are not loaded.
func (r *offerRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Offer, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE status IN ('sent', 'viewed') AND valid_until IS NOT NULL AND valid_until < $1
		ORDER BY valid_until
		LIMIT $2`
	return r.queryOffers(ctx, query, now, limit)
}

// isInvalidText reports a malformed literal, such as an id that is not a UUID.
func isInvalidText(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == "22P02"
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
