// Package dashboard rolls a user's transactions up into summary figures.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Aggregator computes dashboard summaries. It only reads from the store.
type Aggregator struct {
	store domain.Store
	loc   *time.Location
}

// NewAggregator creates an aggregator that interprets dates in loc.
func NewAggregator(store domain.Store, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{store: store, loc: loc}
}

// Summary aggregates the user's transactions dated from start 00:00:00
// through end 23:59:59, both local. Nil bounds are open.
func (a *Aggregator) Summary(ctx context.Context, userID string, start, end *domain.Date) (*domain.DashboardSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, fmt.Errorf("%w: startDate %s is after endDate %s", domain.ErrInvalidInput, start, end)
	}
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	var from, to *time.Time
	if start != nil {
		t := start.StartOf(a.loc)
		from = &t
	}
	if end != nil {
		t := end.EndOf(a.loc)
		to = &t
	}

	txs, err := a.store.ListTransactionsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return a.summarize(txs), nil
}

func (a *Aggregator) summarize(txs []*domain.Transaction) *domain.DashboardSummary {
	s := &domain.DashboardSummary{
		TotalIncome:        decimal.Zero,
		TotalExpenses:      decimal.Zero,
		SpendingByCategory: make(map[string]decimal.Decimal),
		FraudByCategory:    make(map[string]int64),
		SpendingTrends:     []domain.TimeSeriesPoint{},
	}

	scoreSum := decimal.Zero
	var scored int64
	daily := make(map[domain.Date]decimal.Decimal)

	for _, tx := range txs {
		switch tx.Type {
		case domain.TypeIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case domain.TypeExpense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			s.SpendingByCategory[tx.Category] = s.SpendingByCategory[tx.Category].Add(tx.Amount)
			day := domain.DateOf(tx.TransactionDate, a.loc)
			daily[day] = daily[day].Add(tx.Amount)
		}

		if tx.Fraudulent {
			s.TotalFlaggedTransactions++
			s.FraudByCategory[tx.Category]++
		}
		if tx.FraudScore != nil {
			scoreSum = scoreSum.Add(decimal.NewFromFloat(*tx.FraudScore))
			scored++
		}
	}

	s.CurrentBalance = s.TotalIncome.Sub(s.TotalExpenses)

	if scored > 0 {
		s.AverageFraudScore = scoreSum.DivRound(decimal.NewFromInt(scored), 2).InexactFloat64()
	}

	for day, amount := range daily {
		s.SpendingTrends = append(s.SpendingTrends, domain.TimeSeriesPoint{Date: day, Amount: amount})
	}
	sort.Slice(s.SpendingTrends, func(i, j int) bool {
		return s.SpendingTrends[i].Date.Before(s.SpendingTrends[j].Date)
	})

	return s
}
