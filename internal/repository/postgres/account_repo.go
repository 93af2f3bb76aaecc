package postgres

import (
	"context"
	"database/sql"
	"errors"

	"quoteflow/internal/domain"
)

type accountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) domain.AccountRepository {
	return &accountRepository{
		DB: db,
	}
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	a := &domain.Account{}
	var plan string
	err := r.DB.QueryRowContext(ctx, `SELECT id, name, plan_tier, created_at FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &plan, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Plan = domain.PlanTier(plan)
	return a, nil
}
