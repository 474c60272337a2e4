package query

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
	"github.com/opensource-finance/finsight/internal/repository"
)

const testUser = "user-1"

func newStore(t *testing.T) domain.Store {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "query-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	for _, id := range []string{testUser, "user-2"} {
		err = repo.CreateUser(context.Background(), &domain.User{
			ID: id, Username: id, Email: id + "@example.com",
			PasswordHash: "hash", CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	return repo
}

var base = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

// seed stores 25 transactions for testUser: every third one is INCOME,
// every fifth is fraudulent, categories alternate food/travel.
func seed(t *testing.T, store domain.Store) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		typ := domain.TypeExpense
		if i%3 == 0 {
			typ = domain.TypeIncome
		}
		category := "food"
		if i%2 == 1 {
			category = "travel"
		}
		score := 10.0
		fraudulent := i%5 == 0
		if fraudulent {
			score = 80
		}
		at := base.Add(time.Duration(i) * time.Hour)
		err := store.SaveTransaction(ctx, &domain.Transaction{
			ID:              fmt.Sprintf("tx-%02d", i),
			UserID:          testUser,
			Amount:          decimal.NewFromInt(int64(i + 1)),
			Type:            typ,
			Category:        category,
			TransactionDate: at,
			CreatedAt:       at,
			Fraudulent:      fraudulent,
			FraudScore:      &score,
		})
		if err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
	}
	store.SaveTransaction(ctx, &domain.Transaction{
		ID: "other", UserID: "user-2", Amount: decimal.NewFromInt(1),
		Type: domain.TypeExpense, TransactionDate: base, CreatedAt: base,
	})
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name    string
		in      domain.PageRequest
		want    domain.PageRequest
		wantErr bool
	}{
		{"defaults", domain.PageRequest{}, domain.PageRequest{Size: 20, SortBy: "transactionDate", SortDir: "desc"}, false},
		{"clamped size", domain.PageRequest{Size: 500}, domain.PageRequest{Size: 100, SortBy: "transactionDate", SortDir: "desc"}, false},
		{"asc any case", domain.PageRequest{Page: 2, Size: 5, SortBy: "amount", SortDir: "ASC"}, domain.PageRequest{Page: 2, Size: 5, SortBy: "amount", SortDir: "asc"}, false},
		{"unknown sort", domain.PageRequest{SortBy: "password"}, domain.PageRequest{}, true},
		{"bad direction", domain.PageRequest{SortDir: "sideways"}, domain.PageRequest{}, true},
		{"negative page", domain.PageRequest{Page: -1}, domain.PageRequest{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePage(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	svc := NewService(store)
	ctx := context.Background()

	t.Run("DefaultPage", func(t *testing.T) {
		page, err := svc.Search(ctx, domain.TransactionFilter{UserID: testUser}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.TotalElements != 25 || page.TotalPages != 2 || page.Size != 20 {
			t.Errorf("unexpected page header %+v", page)
		}
		if len(page.Content) != 20 {
			t.Fatalf("expected 20 rows, got %d", len(page.Content))
		}
		if page.Content[0].ID != "tx-24" {
			t.Errorf("expected newest first, got %s", page.Content[0].ID)
		}
	})

	t.Run("SecondPage", func(t *testing.T) {
		page, _ := svc.Search(ctx, domain.TransactionFilter{UserID: testUser}, domain.PageRequest{Page: 1})
		if len(page.Content) != 5 || page.Content[4].ID != "tx-00" {
			t.Errorf("unexpected second page %d rows", len(page.Content))
		}
	})

	t.Run("SortByAmountAsc", func(t *testing.T) {
		page, _ := svc.Search(ctx, domain.TransactionFilter{UserID: testUser}, domain.PageRequest{Size: 3, SortBy: "amount", SortDir: "asc"})
		if page.Content[0].ID != "tx-00" || page.Content[2].ID != "tx-02" {
			t.Errorf("unexpected order %s %s", page.Content[0].ID, page.Content[2].ID)
		}
		if page.TotalPages != 9 {
			t.Errorf("expected 9 pages, got %d", page.TotalPages)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		yes := true
		from := base.Add(5 * time.Hour)
		to := base.Add(20 * time.Hour)

		tests := []struct {
			name   string
			filter domain.TransactionFilter
			want   int64
		}{
			{"type", domain.TransactionFilter{UserID: testUser, Type: domain.TypeIncome}, 9},
			{"category", domain.TransactionFilter{UserID: testUser, Category: "travel"}, 12},
			{"fraudulent", domain.TransactionFilter{UserID: testUser, Fraudulent: &yes}, 5},
			{"window", domain.TransactionFilter{UserID: testUser, Start: &from, End: &to}, 16},
			{"combined", domain.TransactionFilter{UserID: testUser, Category: "food", Fraudulent: &yes}, 3},
			{"blank category ignored", domain.TransactionFilter{UserID: testUser, Category: "  "}, 25},
			{"blank type ignored", domain.TransactionFilter{UserID: testUser, Type: "  "}, 25},
			{"padded category", domain.TransactionFilter{UserID: testUser, Category: " travel "}, 12},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				page, err := svc.Search(ctx, tt.filter, domain.PageRequest{})
				if err != nil {
					t.Fatalf("Search failed: %v", err)
				}
				if page.TotalElements != tt.want {
					t.Errorf("expected %d matches, got %d", tt.want, page.TotalElements)
				}
			})
		}
	})

	t.Run("EmptyResult", func(t *testing.T) {
		page, err := svc.Search(ctx, domain.TransactionFilter{UserID: testUser, Category: "none"}, domain.PageRequest{})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Content == nil || len(page.Content) != 0 || page.TotalPages != 0 {
			t.Errorf("unexpected empty page %+v", page)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		if _, err := svc.Search(ctx, domain.TransactionFilter{}, domain.PageRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("missing user: expected ErrInvalidInput, got %v", err)
		}
		if _, err := svc.Search(ctx, domain.TransactionFilter{UserID: "ghost"}, domain.PageRequest{}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("unknown user: expected ErrNotFound, got %v", err)
		}
		if _, err := svc.Search(ctx, domain.TransactionFilter{UserID: testUser, Type: "REFUND"}, domain.PageRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("bad type: expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestListings(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	svc := NewService(store)
	ctx := context.Background()

	all, err := svc.ListByUser(ctx, testUser)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(all) != 25 || all[0].ID != "tx-24" {
		t.Errorf("unexpected listing: %d rows", len(all))
	}

	flagged, err := svc.ListFraudulent(ctx, testUser)
	if err != nil {
		t.Fatalf("ListFraudulent failed: %v", err)
	}
	if len(flagged) != 5 {
		t.Errorf("expected 5 flagged, got %d", len(flagged))
	}
	for _, tx := range flagged {
		if tx.Status != domain.StatusFlagged || tx.RiskLevel != domain.RiskHigh {
			t.Errorf("unexpected flagged row %+v", tx)
		}
	}

	if _, err := svc.ListByUser(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
