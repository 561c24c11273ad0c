package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, owner_id, wallet_id, plan_code, price, period_days,
	period_start, period_end, auto_renew, status, updated_at`

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// ListDueForRenewal returns up to limit active auto-renewing subscriptions
// whose period ended at or before now, oldest first.
func (r *SubscriptionRepo) ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'ACTIVE' AND auto_renew AND period_end <= $1
		ORDER BY period_end LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription rows: %w", err)
	}
	return subs, nil
}

// GetByIDForUpdate locks a subscription row.
// This MUST be called within a transaction.
func (r *SubscriptionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`

	s, err := scanSubscription(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription for update: %w", err)
	}
	return s, nil
}

// Update writes the renewal window and status of a locked subscription.
func (r *SubscriptionRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.Subscription) error {
	query := `UPDATE subscriptions
		SET period_start = $1, period_end = $2, auto_renew = $3, status = $4, updated_at = $5
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query, s.PeriodStart, s.PeriodEnd, s.AutoRenew, s.Status, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found: %s", s.ID)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.WalletID, &s.PlanCode, &s.Price, &s.PeriodDays,
		&s.PeriodStart, &s.PeriodEnd, &s.AutoRenew, &s.Status, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
