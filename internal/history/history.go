// Package history gathers the facts about a user's prior transactions
// that fraud rules are evaluated against.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

// RapidWindow is the look-back window for the rapid-fire count.
const RapidWindow = 10 * time.Minute

// Snapshot holds one read of each history source for a candidate transaction.
// Each source carries its own error so a failed lookup only disables the
// rules that depend on it.
type Snapshot struct {
	Stats    domain.AmountStats
	StatsErr error

	RecentCount int64
	RecentErr   error

	Last    *domain.Transaction
	LastErr error

	Categories    []string
	CategoriesErr error
}

// Gather reads every history source for tx from view.
// Lookups run sequentially so that a transaction-bound view is used from a single goroutine.
func Gather(ctx context.Context, view domain.HistoryView, tx *domain.Transaction) *Snapshot {
	s := &Snapshot{}

	s.Stats, s.StatsErr = view.AmountStats(ctx, tx.UserID)
	if s.StatsErr != nil {
		s.StatsErr = fmt.Errorf("amount stats: %w", s.StatsErr)
	}

	s.RecentCount, s.RecentErr = view.CountInWindow(ctx, tx.UserID, tx.TransactionDate.Add(-RapidWindow), tx.TransactionDate)
	if s.RecentErr != nil {
		s.RecentErr = fmt.Errorf("recent count: %w", s.RecentErr)
	}

	s.Last, s.LastErr = view.MostRecent(ctx, tx.UserID)
	if s.LastErr != nil {
		s.LastErr = fmt.Errorf("most recent: %w", s.LastErr)
	}

	s.Categories, s.CategoriesErr = view.DistinctCategories(ctx, tx.UserID)
	if s.CategoriesErr != nil {
		s.CategoriesErr = fmt.Errorf("categories: %w", s.CategoriesErr)
	}

	return s
}

// Err returns the failure of source, if any.
func (s *Snapshot) Err(source domain.HistorySource) error {
	switch source {
	case domain.SourceAverage:
		return s.StatsErr
	case domain.SourceWindow:
		return s.RecentErr
	case domain.SourceMostRecent:
		return s.LastErr
	case domain.SourceCategories:
		return s.CategoriesErr
	default:
		return fmt.Errorf("unknown history source %q", source)
	}
}

// AverageMultiple is amount divided by the mean of prior amounts,
// computed as amount*count/sum so that exactly three times the mean yields 3.
// It is zero when there is no positive mean.
func (s *Snapshot) AverageMultiple(amount decimal.Decimal) decimal.Decimal {
	if s.Stats.Count == 0 || !s.Stats.Sum.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(s.Stats.Count)).Div(s.Stats.Sum)
}

// HoursSinceLast is the whole number of hours between tx and the latest
// prior transaction, ignoring direction. It is -1 without a prior transaction.
func (s *Snapshot) HoursSinceLast(tx *domain.Transaction) int64 {
	if s.Last == nil {
		return -1
	}
	d := tx.TransactionDate.Sub(s.Last.TransactionDate)
	if d < 0 {
		d = -d
	}
	return int64(d / time.Hour)
}

// Activation returns the CEL variables describing tx against the snapshot.
// Variables of failed sources hold zero values.
func (s *Snapshot) Activation(tx *domain.Transaction) map[string]any {
	amount, _ := tx.Amount.Float64()

	avg := 0.0
	if a := s.Stats.Average(); a.Valid {
		avg, _ = a.Decimal.Float64()
	}
	multiple, _ := s.AverageMultiple(tx.Amount).Float64()

	lastLocation := ""
	if s.Last != nil {
		lastLocation = normalizeLocation(s.Last.Location)
	}

	categories := s.Categories
	if categories == nil {
		categories = []string{}
	}

	return map[string]any{
		"amount":           amount,
		"avg_amount":       avg,
		"avg_multiple":     multiple,
		"recent_count":     s.RecentCount,
		"has_last":         s.Last != nil,
		"hours_since_last": s.HoursSinceLast(tx),
		"location":         normalizeLocation(tx.Location),
		"last_location":    lastLocation,
		"category":         tx.Category,
		"known_categories": categories,
		"tx_type":          string(tx.Type),
	}
}

func normalizeLocation(loc string) string {
	return strings.ToLower(strings.TrimSpace(loc))
}
