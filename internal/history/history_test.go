package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

type stubView struct {
	stats      domain.AmountStats
	recent     int64
	last       *domain.Transaction
	categories []string
	err        error
}

func (s stubView) AmountStats(context.Context, string) (domain.AmountStats, error) {
	return s.stats, s.err
}

func (s stubView) CountInWindow(_ context.Context, _ string, from, to time.Time) (int64, error) {
	if to.Sub(from) != RapidWindow {
		return 0, errors.New("unexpected window")
	}
	return s.recent, nil
}

func (s stubView) MostRecent(context.Context, string) (*domain.Transaction, error) {
	return s.last, nil
}

func (s stubView) DistinctCategories(context.Context, string) ([]string, error) {
	return s.categories, nil
}

func TestGatherAndActivation(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tx := &domain.Transaction{
		UserID:          "u1",
		Amount:          decimal.RequireFromString("450"),
		Category:        "travel",
		Location:        "  Tokyo ",
		TransactionDate: at,
	}
	view := stubView{
		stats:      domain.AmountStats{Count: 2, Sum: decimal.RequireFromString("300")},
		recent:     3,
		last:       &domain.Transaction{Location: "LONDON", TransactionDate: at.Add(-150 * time.Minute)},
		categories: []string{"food"},
	}

	snap := Gather(context.Background(), view, tx)
	act := snap.Activation(tx)

	if act["avg_amount"] != 150.0 {
		t.Errorf("expected avg 150, got %v", act["avg_amount"])
	}
	if act["avg_multiple"] != 3.0 {
		t.Errorf("expected multiple 3, got %v", act["avg_multiple"])
	}
	if act["recent_count"] != int64(3) {
		t.Errorf("expected recent 3, got %v", act["recent_count"])
	}
	if act["hours_since_last"] != int64(2) {
		t.Errorf("expected 2 whole hours, got %v", act["hours_since_last"])
	}
	if act["location"] != "tokyo" || act["last_location"] != "london" {
		t.Errorf("expected normalized locations, got %v / %v", act["location"], act["last_location"])
	}
	if act["has_last"] != true {
		t.Error("expected has_last")
	}
}

func TestSnapshotErrors(t *testing.T) {
	boom := errors.New("boom")
	tx := &domain.Transaction{UserID: "u1", Amount: decimal.NewFromInt(1)}
	snap := Gather(context.Background(), stubView{err: boom}, tx)

	if !errors.Is(snap.Err(domain.SourceAverage), boom) {
		t.Errorf("expected average source to fail, got %v", snap.Err(domain.SourceAverage))
	}
	if snap.Err(domain.SourceCategories) != nil {
		t.Errorf("expected categories source to succeed, got %v", snap.Err(domain.SourceCategories))
	}
	if snap.Err("bogus") == nil {
		t.Error("expected error for unknown source")
	}
	if act := snap.Activation(tx); act["avg_amount"] != 0.0 || act["has_last"] != false {
		t.Errorf("expected zero values, got %v", act)
	}
}
