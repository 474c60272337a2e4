// Package subscription mines recurring monthly expenses from transaction history.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/audit"
	"github.com/opensource-finance/finsight/internal/domain"
)

// Cycle bounds, in whole days between consecutive payments.
const (
	MinCycleDays = 25
	MaxCycleDays = 35

	// MinQualifyingPairs is the number of monthly-spaced payment pairs
	// a merchant needs before it is reported.
	MinQualifyingPairs = 2
)

// Detector finds and manages a user's subscriptions.
type Detector struct {
	store    domain.Store
	loc      *time.Location
	recorder *audit.Recorder
	now      func() time.Time
}

// NewDetector creates a detector. Calendar dates are taken in loc.
func NewDetector(store domain.Store, loc *time.Location, recorder *audit.Recorder) *Detector {
	if loc == nil {
		loc = time.UTC
	}
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Detector{
		store:    store,
		loc:      loc,
		recorder: recorder,
		now:      time.Now,
	}
}

// MerchantKey normalizes a description for grouping: lower case, ASCII letters and digits only.
func MerchantKey(description string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(description) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// wholeDays counts the complete 24 hour periods from a to b.
func wholeDays(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// Detect scans the user's expense history and persists every merchant
// paid on a roughly monthly cycle. The stored records are returned.
func (d *Detector) Detect(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	txs, err := d.store.ListTransactionsBetween(ctx, userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	groups := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		// An empty description means none was given. Any other text is kept,
		// even when it normalizes to the empty key.
		if tx.Type != domain.TypeExpense || tx.Description == "" {
			continue
		}
		key := MerchantKey(tx.Description)
		groups[key] = append(groups[key], tx)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := d.now().UTC()
	var detected []*domain.Subscription
	for _, key := range keys {
		if sub := d.evaluate(userID, key, groups[key], now); sub != nil {
			detected = append(detected, sub)
		}
	}

	stored, err := d.store.UpsertSubscriptions(ctx, detected)
	if err != nil {
		return nil, fmt.Errorf("failed to save subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "subscriptions detected",
		"user_id", userID,
		"merchants", len(groups),
		"subscriptions", len(stored),
	)
	return stored, nil
}

// evaluate turns one merchant group into a subscription, or nil when
// the payments are not spaced monthly often enough.
func (d *Detector) evaluate(userID, key string, group []*domain.Transaction, now time.Time) *domain.Subscription {
	if len(group) < 2 {
		return nil
	}

	sort.SliceStable(group, func(i, j int) bool {
		return group[i].TransactionDate.Before(group[j].TransactionDate)
	})

	qualifying := 0
	for i := 1; i < len(group); i++ {
		days := wholeDays(group[i-1].TransactionDate, group[i].TransactionDate)
		if days >= MinCycleDays && days <= MaxCycleDays {
			qualifying++
		}
	}
	if qualifying < MinQualifyingPairs {
		return nil
	}

	sum := decimal.Zero
	for _, tx := range group {
		sum = sum.Add(tx.Amount)
	}
	avg := sum.DivRound(decimal.NewFromInt(int64(len(group))), 2)

	last := group[len(group)-1]
	lastPaid := domain.DateOf(last.TransactionDate, d.loc)

	return &domain.Subscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		Merchant:     last.Description,
		MerchantKey:  key,
		AvgAmount:    avg,
		LastPaidDate: lastPaid,
		NextDueDate:  lastPaid.AddDays(domain.SubscriptionCycleDays),
		Status:       domain.SubscriptionActive,
		CreatedAt:    now,
	}
}

// DueSoon returns ACTIVE subscriptions due between today and today+days inclusive.
func (d *Detector) DueSoon(ctx context.Context, userID string, days int) ([]*domain.Subscription, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", domain.ErrInvalidInput)
	}
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	today := domain.DateOf(d.now(), d.loc)
	return d.store.ListDueSubscriptions(ctx, userID, today, today.AddDays(days))
}

// List returns the user's subscriptions, optionally narrowed to one status.
func (d *Detector) List(ctx context.Context, userID string, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return d.store.ListSubscriptions(ctx, userID, status)
}

// Ignore marks a subscription IGNORED and audits the change.
func (d *Detector) Ignore(ctx context.Context, subID string) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := d.store.WithinTx(ctx, func(s domain.Store) error {
		var err error
		sub, err = s.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if err := s.UpdateSubscriptionStatus(ctx, subID, domain.SubscriptionIgnored); err != nil {
			return err
		}
		sub.Status = domain.SubscriptionIgnored

		_, err = d.recorder.Record(ctx, s, sub.UserID,
			domain.ActionIgnoreSubscription, domain.EntitySubscription, sub.ID,
			audit.SubscriptionDetails{SubscriptionID: sub.ID, Merchant: sub.Merchant},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
