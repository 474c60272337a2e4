// Package domain defines the core interfaces and types for FinSight.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryView is the read-only slice of a user's prior transactions
// that the fraud scoring rules consult.
type HistoryView interface {
	// AmountStats summarizes all of the user's transaction amounts, ignoring type.
	AmountStats(ctx context.Context, userID string) (AmountStats, error)

	// CountInWindow counts transactions with from <= TransactionDate <= to.
	CountInWindow(ctx context.Context, userID string, from, to time.Time) (int64, error)

	// MostRecent returns the latest transaction by TransactionDate, or nil.
	MostRecent(ctx context.Context, userID string) (*Transaction, error)

	// DistinctCategories lists every category the user has used.
	DistinctCategories(ctx context.Context, userID string) ([]string, error)
}

// AmountStats is the count and exact sum of a set of amounts.
type AmountStats struct {
	Count int64
	Sum   decimal.Decimal
}

// Average returns the mean amount, invalid when Count is zero.
func (s AmountStats) Average() decimal.NullDecimal {
	if s.Count == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.Sum.Div(decimal.NewFromInt(s.Count)))
}

// Store defines the interface for data persistence.
// Every method is a named query; entities reference each other by ID.
type Store interface {
	HistoryView

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]*Transaction, error)
	ListFraudulentTransactions(ctx context.Context, userID string) ([]*Transaction, error)
	ListTransactionsBetween(ctx context.Context, userID string, from, to *time.Time) ([]*Transaction, error)
	FindTransactions(ctx context.Context, filter TransactionFilter, page PageRequest) ([]*Transaction, int64, error)

	// Fraud alert operations
	SaveAlert(ctx context.Context, alert *FraudAlert) error
	GetAlert(ctx context.Context, alertID string) (*FraudAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*FraudAlert, error)
	ResolveAlert(ctx context.Context, alertID string) error

	// Subscription operations
	UpsertSubscriptions(ctx context.Context, subs []*Subscription) ([]*Subscription, error)
	GetSubscription(ctx context.Context, subID string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, userID string, status SubscriptionStatus) ([]*Subscription, error)
	ListDueSubscriptions(ctx context.Context, userID string, from, to Date) ([]*Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, subID string, status SubscriptionStatus) error

	// Audit operations
	AppendAudit(ctx context.Context, entry *AuditLog) error
	ListAudit(ctx context.Context, userID string) ([]*AuditLog, error)

	// WithinTx runs fn against a Store bound to one database transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	// Calling it on a Store that is already transactional reuses that transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// WithinSavepoint runs fn so that its writes are undone on error without
	// aborting the enclosing transaction. Outside a transaction it just calls fn.
	WithinSavepoint(ctx context.Context, name string, fn func(Store) error) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
