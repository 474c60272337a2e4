package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

const txColumns = `id, user_id, amount, type, category, description, location,
	transaction_date, fraudulent, fraud_score, created_at`

// SaveTransaction stores a scored transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" || tx.UserID == "" {
		return fmt.Errorf("%w: transaction id and user id are required", domain.ErrInvalidInput)
	}
	if tx.CreatedAt.IsZero() {
		return fmt.Errorf("%w: transaction createdAt is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var score sql.NullFloat64
	if tx.FraudScore != nil {
		score = sql.NullFloat64{Float64: *tx.FraudScore, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.UserID, tx.Amount.StringFixed(2), string(tx.Type),
		tx.Category, tx.Description, tx.Location,
		utc(tx.TransactionDate), boolToInt(tx.Fraudulent), score, utc(tx.CreatedAt),
	)
	return r.mapError(err, "transaction")
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`

	tx, err := scanTransaction(r.q.QueryRowContext(ctx, r.rebind(query), txID))
	if err != nil {
		return nil, r.mapError(err, "transaction")
	}
	return tx, nil
}

// ListTransactions returns all of a user's transactions, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY transaction_date DESC, created_at DESC
	`
	return r.queryTransactions(ctx, query, userID)
}

// ListFraudulentTransactions returns the user's flagged transactions, newest first.
func (r *SQLRepository) ListFraudulentTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE user_id = ? AND fraudulent = 1
		ORDER BY transaction_date DESC, created_at DESC
	`
	return r.queryTransactions(ctx, query, userID)
}

// ListTransactionsBetween returns the user's transactions with
// from <= transaction_date <= to, oldest first. Nil bounds are open.
func (r *SQLRepository) ListTransactionsBetween(ctx context.Context, userID string, from, to *time.Time) ([]*domain.Transaction, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + txColumns + ` FROM transactions WHERE user_id = ?`)
	args := []any{userID}

	if from != nil {
		sb.WriteString(` AND transaction_date >= ?`)
		args = append(args, utc(*from))
	}
	if to != nil {
		sb.WriteString(` AND transaction_date <= ?`)
		args = append(args, utc(*to))
	}
	sb.WriteString(` ORDER BY transaction_date ASC, created_at ASC`)

	return r.queryTransactions(ctx, sb.String(), args...)
}

// sortColumns maps the sortable API fields to columns.
var sortColumns = map[string]string{
	"id":              "id",
	"amount":          "amount",
	"type":            "type",
	"category":        "category",
	"description":     "description",
	"location":        "location",
	"transactionDate": "transaction_date",
	"fraudulent":      "fraudulent",
	"fraudScore":      "fraud_score",
	"createdAt":       "created_at",
}

// FindTransactions returns one page of transactions matching filter and the total match count.
func (r *SQLRepository) FindTransactions(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) ([]*domain.Transaction, int64, error) {
	if filter.UserID == "" {
		return nil, 0, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}

	col, ok := sortColumns[page.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unsupported sort field %q", domain.ErrInvalidInput, page.SortBy)
	}
	dir := "DESC"
	if strings.EqualFold(page.SortDir, domain.SortAsc) {
		dir = "ASC"
	}
	if page.Size <= 0 || page.Page < 0 {
		return nil, 0, fmt.Errorf("%w: invalid page %d size %d", domain.ErrInvalidInput, page.Page, page.Size)
	}

	where := []string{"user_id = ?"}
	args := []any{filter.UserID}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Start != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, utc(*filter.Start))
	}
	if filter.End != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, utc(*filter.End))
	}
	if filter.Fraudulent != nil {
		where = append(where, "fraudulent = ?")
		args = append(args, boolToInt(*filter.Fraudulent))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE ` + whereClause
	if err := r.q.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, r.mapError(err, "count transactions")
	}
	if total == 0 {
		return []*domain.Transaction{}, 0, nil
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + whereClause +
		` ORDER BY ` + col + ` ` + dir + `, id ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, page.Size, page.Page*page.Size)

	txs, err := r.queryTransactions(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// AmountStats returns the count and sum of the user's amounts.
func (r *SQLRepository) AmountStats(ctx context.Context, userID string) (domain.AmountStats, error) {
	// SQLite keeps NUMERIC as REAL, so the sum is taken over integer cents.
	query := `
		SELECT COUNT(*), COALESCE(SUM(CAST(ROUND(amount * 100) AS BIGINT)), 0)
		FROM transactions WHERE user_id = ?
	`

	var (
		stats domain.AmountStats
		cents int64
	)
	if err := r.q.QueryRowContext(ctx, r.rebind(query), userID).Scan(&stats.Count, &cents); err != nil {
		return domain.AmountStats{}, r.mapError(err, "amount stats")
	}
	stats.Sum = decimal.New(cents, -2)
	return stats, nil
}

// CountInWindow counts the user's transactions with from <= transaction_date <= to.
func (r *SQLRepository) CountInWindow(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND transaction_date >= ? AND transaction_date <= ?
	`

	var n int64
	if err := r.q.QueryRowContext(ctx, r.rebind(query), userID, utc(from), utc(to)).Scan(&n); err != nil {
		return 0, r.mapError(err, "count window")
	}
	return n, nil
}

// MostRecent returns the user's latest transaction by transaction date, or nil.
func (r *SQLRepository) MostRecent(ctx context.Context, userID string) (*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT 1
	`

	tx, err := scanTransaction(r.q.QueryRowContext(ctx, r.rebind(query), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.mapError(err, "most recent transaction")
	}
	return tx, nil
}

// DistinctCategories lists the non-empty categories the user has used.
func (r *SQLRepository) DistinctCategories(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT category FROM transactions
		WHERE user_id = ? AND category <> ''
		ORDER BY category
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, r.mapError(err, "distinct categories")
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, r.mapError(err, "list transactions")
	}
	defer rows.Close()

	transactions := []*domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var txType string
	var score sql.NullFloat64

	if err := s.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &txType,
		&tx.Category, &tx.Description, &tx.Location,
		&tx.TransactionDate, &tx.Fraudulent, &score, &tx.CreatedAt,
	); err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.TransactionDate = tx.TransactionDate.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	if score.Valid {
		v := score.Float64
		tx.FraudScore = &v
	}
	return &tx, nil
}
