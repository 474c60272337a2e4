package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "finsight-test.db"),
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLRepository, id string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           id,
		Username:     "user-" + id,
		Email:        id + "@example.com",
		FullName:     "Test " + id,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func newTx(id, userID, amount string, typ domain.TransactionType, category string, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:              id,
		UserID:          userID,
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		Category:        category,
		Description:     "desc " + id,
		TransactionDate: at,
		CreatedAt:       at,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "u1")
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("DuplicateUserConflicts", func(t *testing.T) {
		dup := &domain.User{
			ID:           "u1-dup",
			Username:     user.Username,
			Email:        "other@example.com",
			PasswordHash: "hash",
			CreatedAt:    time.Now().UTC(),
		}
		err := repo.CreateUser(ctx, dup)
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got: %v", err)
		}
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		got, err := repo.GetUserByUsername(ctx, user.Username)
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if got.ID != user.ID || got.Email != user.Email {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		score := 55.0
		tx := newTx("tx-001", user.ID, "1000.50", domain.TypeExpense, "Food", base)
		tx.Location = "Paris"
		tx.FraudScore = &score

		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if !retrieved.Amount.Equal(tx.Amount) {
			t.Errorf("expected Amount %s, got %s", tx.Amount, retrieved.Amount)
		}
		if !retrieved.TransactionDate.Equal(base) {
			t.Errorf("expected date %v, got %v", base, retrieved.TransactionDate)
		}
		if retrieved.FraudScore == nil || *retrieved.FraudScore != score {
			t.Errorf("expected score %v, got %v", score, retrieved.FraudScore)
		}
		if retrieved.Location != "Paris" || retrieved.Type != domain.TypeExpense {
			t.Errorf("unexpected transaction %+v", retrieved)
		}
	})

	t.Run("CreatedAtRequired", func(t *testing.T) {
		tx := newTx("tx-bad", user.ID, "1", domain.TypeExpense, "", base)
		tx.CreatedAt = time.Time{}
		if err := repo.SaveTransaction(ctx, tx); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})

	t.Run("HistoryView", func(t *testing.T) {
		for i, amt := range []string{"100.10", "200.20"} {
			tx := newTx("tx-h"+string(rune('a'+i)), user.ID, amt, domain.TypeIncome, "Salary", base.Add(time.Duration(i+1)*time.Minute))
			if err := repo.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		stats, err := repo.AmountStats(ctx, user.ID)
		if err != nil {
			t.Fatalf("AmountStats failed: %v", err)
		}
		if stats.Count != 3 || !stats.Sum.Equal(decimal.RequireFromString("1300.80")) {
			t.Errorf("unexpected stats %+v", stats)
		}
		if avg := stats.Average(); !avg.Valid || !avg.Decimal.Equal(decimal.RequireFromString("433.6")) {
			t.Errorf("unexpected average %v", avg)
		}

		n, err := repo.CountInWindow(ctx, user.ID, base, base.Add(time.Minute))
		if err != nil {
			t.Fatalf("CountInWindow failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 in inclusive window, got %d", n)
		}

		last, err := repo.MostRecent(ctx, user.ID)
		if err != nil {
			t.Fatalf("MostRecent failed: %v", err)
		}
		if last == nil || last.ID != "tx-hb" {
			t.Errorf("expected tx-hb as most recent, got %+v", last)
		}

		cats, err := repo.DistinctCategories(ctx, user.ID)
		if err != nil {
			t.Fatalf("DistinctCategories failed: %v", err)
		}
		if len(cats) != 2 || cats[0] != "Food" || cats[1] != "Salary" {
			t.Errorf("unexpected categories %v", cats)
		}
	})

	t.Run("AmountAtMaximum", func(t *testing.T) {
		rich := seedUser(t, repo, "u3")
		for i := 0; i < 2; i++ {
			tx := newTx("tx-max"+string(rune('a'+i)), rich.ID, domain.MaxAmount.StringFixed(2), domain.TypeIncome, "Sale", base.Add(time.Duration(i)*time.Minute))
			if err := repo.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		got, err := repo.GetTransaction(ctx, "tx-maxa")
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if !got.Amount.Equal(domain.MaxAmount) {
			t.Errorf("expected Amount %s, got %s", domain.MaxAmount, got.Amount)
		}

		stats, err := repo.AmountStats(ctx, rich.ID)
		if err != nil {
			t.Fatalf("AmountStats failed: %v", err)
		}
		if !stats.Sum.Equal(decimal.RequireFromString("19999999999999.98")) {
			t.Errorf("expected exact sum, got %s", stats.Sum)
		}
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		other := seedUser(t, repo, "u2")
		stats, err := repo.AmountStats(ctx, other.ID)
		if err != nil {
			t.Fatalf("AmountStats failed: %v", err)
		}
		if stats.Average().Valid {
			t.Error("expected null average for empty history")
		}
		last, err := repo.MostRecent(ctx, other.ID)
		if err != nil || last != nil {
			t.Errorf("expected nil, nil; got %v, %v", last, err)
		}
	})

	t.Run("FindTransactions", func(t *testing.T) {
		fraud := false
		txs, total, err := repo.FindTransactions(ctx,
			domain.TransactionFilter{UserID: user.ID, Fraudulent: &fraud},
			domain.PageRequest{Page: 0, Size: 2, SortBy: "amount", SortDir: domain.SortAsc},
		)
		if err != nil {
			t.Fatalf("FindTransactions failed: %v", err)
		}
		if total != 3 || len(txs) != 2 {
			t.Fatalf("expected total 3 and page of 2, got %d and %d", total, len(txs))
		}
		if !txs[0].Amount.Equal(decimal.RequireFromString("100.10")) {
			t.Errorf("expected smallest amount first, got %s", txs[0].Amount)
		}

		for _, field := range domain.SortFields {
			if _, _, err := repo.FindTransactions(ctx,
				domain.TransactionFilter{UserID: user.ID},
				domain.PageRequest{Size: 10, SortBy: field},
			); err != nil {
				t.Errorf("sort by %s: %v", field, err)
			}
		}

		_, _, err = repo.FindTransactions(ctx,
			domain.TransactionFilter{UserID: user.ID},
			domain.PageRequest{Size: 10, SortBy: "password_hash"},
		)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unknown sort field, got %v", err)
		}
	})

	t.Run("AlertsAndAudit", func(t *testing.T) {
		alert := &domain.FraudAlert{
			ID:            "alert-1",
			UserID:        user.ID,
			TransactionID: "tx-001",
			Message:       "Fraud detected: test",
			Severity:      domain.RiskHigh,
			CreatedAt:     base,
		}
		if err := repo.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		open := false
		alerts, err := repo.ListAlerts(ctx, domain.AlertFilter{UserID: user.ID, Resolved: &open})
		if err != nil || len(alerts) != 1 {
			t.Fatalf("expected 1 open alert, got %d (%v)", len(alerts), err)
		}

		if err := repo.ResolveAlert(ctx, alert.ID); err != nil {
			t.Fatalf("ResolveAlert failed: %v", err)
		}
		got, err := repo.GetAlert(ctx, alert.ID)
		if err != nil || !got.Resolved {
			t.Errorf("expected resolved alert, got %+v (%v)", got, err)
		}
		if err := repo.ResolveAlert(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		entityID := alert.ID
		entry := &domain.AuditLog{
			ID:         "audit-1",
			UserID:     user.ID,
			Action:     domain.ActionResolveFraudAlert,
			EntityType: domain.EntityFraudAlert,
			EntityID:   &entityID,
			Details:    `{"alertId":"alert-1"}`,
			Timestamp:  time.Now().UTC(),
		}
		if err := repo.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
		logs, err := repo.ListAudit(ctx, user.ID)
		if err != nil || len(logs) != 1 || logs[0].EntityID == nil || *logs[0].EntityID != entityID {
			t.Errorf("unexpected audit logs %+v (%v)", logs, err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "nonexistent")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		_, err = repo.GetUser(ctx, "nonexistent")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUpsertSubscriptions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "u1")

	first := &domain.Subscription{
		ID:           "sub-1",
		UserID:       user.ID,
		Merchant:     "Netflix",
		MerchantKey:  "netflix",
		AvgAmount:    decimal.RequireFromString("15.99"),
		LastPaidDate: domain.NewDate(2024, time.March, 1),
		NextDueDate:  domain.NewDate(2024, time.March, 31),
		Status:       domain.SubscriptionActive,
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := repo.UpsertSubscriptions(ctx, []*domain.Subscription{first})
	if err != nil {
		t.Fatalf("UpsertSubscriptions failed: %v", err)
	}
	if len(stored) != 1 || !stored[0].NextDueDate.Equal(first.NextDueDate) {
		t.Fatalf("unexpected stored subscriptions %+v", stored)
	}

	if err := repo.UpdateSubscriptionStatus(ctx, "sub-1", domain.SubscriptionIgnored); err != nil {
		t.Fatalf("UpdateSubscriptionStatus failed: %v", err)
	}

	again := *first
	again.ID = "sub-2"
	again.Merchant = "NETFLIX.COM"
	again.LastPaidDate = domain.NewDate(2024, time.March, 31)
	again.NextDueDate = domain.NewDate(2024, time.April, 30)
	stored, err = repo.UpsertSubscriptions(ctx, []*domain.Subscription{&again})
	if err != nil {
		t.Fatalf("UpsertSubscriptions failed: %v", err)
	}

	got := stored[0]
	if got.ID != "sub-1" {
		t.Errorf("expected original ID to be kept, got %s", got.ID)
	}
	if got.Status != domain.SubscriptionIgnored {
		t.Errorf("expected IGNORED status to be kept, got %s", got.Status)
	}
	if got.Merchant != "NETFLIX.COM" || !got.NextDueDate.Equal(again.NextDueDate) {
		t.Errorf("expected refreshed figures, got %+v", got)
	}

	due, err := repo.ListDueSubscriptions(ctx, user.ID, domain.NewDate(2024, time.April, 1), domain.NewDate(2024, time.May, 1))
	if err != nil {
		t.Fatalf("ListDueSubscriptions failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("ignored subscriptions must not be due, got %d", len(due))
	}

	all, err := repo.ListSubscriptions(ctx, user.ID, "")
	if err != nil || len(all) != 1 {
		t.Errorf("expected 1 subscription, got %d (%v)", len(all), err)
	}
}

func TestWithinTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "u1")
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("RollbackOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithinTx(ctx, func(s domain.Store) error {
			if err := s.SaveTransaction(ctx, newTx("tx-rb", user.ID, "10", domain.TypeExpense, "", at)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.GetTransaction(ctx, "tx-rb"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected rolled back transaction, got %v", err)
		}
	})

	t.Run("SavepointKeepsOuterWork", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(s domain.Store) error {
			if err := s.SaveTransaction(ctx, newTx("tx-sp", user.ID, "10", domain.TypeExpense, "", at)); err != nil {
				return err
			}
			spErr := s.WithinSavepoint(ctx, "alert", func(s domain.Store) error {
				// Unknown transaction reference violates the foreign key.
				return s.SaveAlert(ctx, &domain.FraudAlert{
					ID: "a-sp", UserID: user.ID, TransactionID: "missing",
					Message: "x", Severity: domain.RiskHigh, CreatedAt: at,
				})
			})
			if spErr == nil {
				t.Error("expected savepoint work to fail")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTx failed: %v", err)
		}
		if _, err := repo.GetTransaction(ctx, "tx-sp"); err != nil {
			t.Errorf("expected committed transaction, got %v", err)
		}
		if _, err := repo.GetAlert(ctx, "a-sp"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no alert, got %v", err)
		}
	})

	t.Run("InvalidSavepointName", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(s domain.Store) error {
			return s.WithinSavepoint(ctx, "x; DROP TABLE users", func(domain.Store) error { return nil })
		})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
