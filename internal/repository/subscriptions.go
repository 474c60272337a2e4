package repository

import (
	"context"
	"fmt"

	"github.com/opensource-finance/finsight/internal/domain"
)

const subscriptionColumns = `id, user_id, merchant, merchant_key, avg_amount,
	last_paid_date, next_due_date, status, created_at`

// UpsertSubscriptions persists detected subscriptions in one transaction.
// A row already stored for (user, merchant key) keeps its ID, creation time
// and status; the detected figures are refreshed. The stored rows are returned.
func (r *SQLRepository) UpsertSubscriptions(ctx context.Context, subs []*domain.Subscription) ([]*domain.Subscription, error) {
	if len(subs) == 0 {
		return []*domain.Subscription{}, nil
	}

	upsert := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, merchant_key) DO UPDATE SET
			merchant = excluded.merchant,
			avg_amount = excluded.avg_amount,
			last_paid_date = excluded.last_paid_date,
			next_due_date = excluded.next_due_date
	`
	lookup := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? AND merchant_key = ?`

	stored := make([]*domain.Subscription, 0, len(subs))
	err := r.WithinTx(ctx, func(s domain.Store) error {
		tr := s.(*SQLRepository)
		for _, sub := range subs {
			if sub.ID == "" || sub.UserID == "" || sub.MerchantKey == "" {
				return fmt.Errorf("%w: subscription id, user id and merchant key are required", domain.ErrInvalidInput)
			}
			if _, err := tr.q.ExecContext(ctx, tr.rebind(upsert),
				sub.ID, sub.UserID, sub.Merchant, sub.MerchantKey, sub.AvgAmount.StringFixed(2),
				sub.LastPaidDate, sub.NextDueDate, string(sub.Status), utc(sub.CreatedAt),
			); err != nil {
				return tr.mapError(err, "subscription")
			}

			got, err := scanSubscription(tr.q.QueryRowContext(ctx, tr.rebind(lookup), sub.UserID, sub.MerchantKey))
			if err != nil {
				return tr.mapError(err, "subscription")
			}
			stored = append(stored, got)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetSubscription retrieves a subscription by ID.
func (r *SQLRepository) GetSubscription(ctx context.Context, subID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`

	sub, err := scanSubscription(r.q.QueryRowContext(ctx, r.rebind(query), subID))
	if err != nil {
		return nil, r.mapError(err, "subscription")
	}
	return sub, nil
}

// ListSubscriptions returns the user's subscriptions ordered by next due date.
// An empty status lists every status.
func (r *SQLRepository) ListSubscriptions(ctx context.Context, userID string, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY next_due_date ASC, merchant ASC`

	return r.querySubscriptions(ctx, query, args...)
}

// ListDueSubscriptions returns ACTIVE subscriptions with from <= next_due_date <= to.
func (r *SQLRepository) ListDueSubscriptions(ctx context.Context, userID string, from, to domain.Date) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = ? AND status = ? AND next_due_date >= ? AND next_due_date <= ?
		ORDER BY next_due_date ASC, merchant ASC
	`
	return r.querySubscriptions(ctx, query, userID, string(domain.SubscriptionActive), from, to)
}

// UpdateSubscriptionStatus sets the status of one subscription.
func (r *SQLRepository) UpdateSubscriptionStatus(ctx context.Context, subID string, status domain.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown subscription status %q", domain.ErrInvalidInput, status)
	}

	query := `UPDATE subscriptions SET status = ? WHERE id = ?`
	result, err := r.q.ExecContext(ctx, r.rebind(query), string(status), subID)
	if err != nil {
		return r.mapError(err, "update subscription")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: subscription %s", domain.ErrNotFound, subID)
	}
	return nil
}

func (r *SQLRepository) querySubscriptions(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.q.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, r.mapError(err, "list subscriptions")
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(s scanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	var status string
	if err := s.Scan(
		&sub.ID, &sub.UserID, &sub.Merchant, &sub.MerchantKey, &sub.AvgAmount,
		&sub.LastPaidDate, &sub.NextDueDate, &status, &sub.CreatedAt,
	); err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionStatus(status)
	sub.CreatedAt = sub.CreatedAt.UTC()
	return &sub, nil
}
