package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/finsight/internal/domain"
)

const alertColumns = `id, user_id, transaction_id, message, severity, resolved, created_at`

// SaveAlert stores a new fraud alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	if alert.ID == "" || alert.UserID == "" || alert.TransactionID == "" {
		return fmt.Errorf("%w: alert id, user id and transaction id are required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.UserID, alert.TransactionID, alert.Message,
		string(alert.Severity), boolToInt(alert.Resolved), utc(alert.CreatedAt),
	)
	return r.mapError(err, "fraud alert")
}

// GetAlert retrieves a fraud alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.FraudAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts WHERE id = ?`

	alert, err := scanAlert(r.q.QueryRowContext(ctx, r.rebind(query), alertID))
	if err != nil {
		return nil, r.mapError(err, "fraud alert")
	}
	return alert, nil
}

// ListAlerts returns alerts matching filter, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.FraudAlert, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Resolved != nil {
		where = append(where, "resolved = ?")
		args = append(args, boolToInt(*filter.Resolved))
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(filter.Severity))
	}

	query := `SELECT ` + alertColumns + ` FROM fraud_alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, r.mapError(err, "list fraud alerts")
	}
	defer rows.Close()

	alerts := []*domain.FraudAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert resolved.
func (r *SQLRepository) ResolveAlert(ctx context.Context, alertID string) error {
	query := `UPDATE fraud_alerts SET resolved = 1 WHERE id = ?`

	result, err := r.q.ExecContext(ctx, r.rebind(query), alertID)
	if err != nil {
		return r.mapError(err, "resolve fraud alert")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: fraud alert %s", domain.ErrNotFound, alertID)
	}
	return nil
}

func scanAlert(s scanner) (*domain.FraudAlert, error) {
	var a domain.FraudAlert
	var severity string
	if err := s.Scan(
		&a.ID, &a.UserID, &a.TransactionID, &a.Message,
		&severity, &a.Resolved, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Severity = domain.RiskLevel(severity)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
