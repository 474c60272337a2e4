package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensource-finance/finsight/internal/domain"
)

// AppendAudit stores an audit entry. Entries are never updated.
func (r *SQLRepository) AppendAudit(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == "" || entry.UserID == "" || entry.Action == "" {
		return fmt.Errorf("%w: audit id, user id and action are required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var entityID sql.NullString
	if entry.EntityID != nil {
		entityID = sql.NullString{String: *entry.EntityID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.UserID, entry.Action, entry.EntityType,
		entityID, entry.Details, utc(entry.Timestamp),
	)
	return r.mapError(err, "audit log")
}

// ListAudit returns the user's audit trail, newest first.
func (r *SQLRepository) ListAudit(ctx context.Context, userID string) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, user_id, action, entity_type, entity_id, details, timestamp
		FROM audit_logs
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, r.mapError(err, "list audit logs")
	}
	defer rows.Close()

	logs := []*domain.AuditLog{}
	for rows.Next() {
		var entry domain.AuditLog
		var entityID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType,
			&entityID, &entry.Details, &entry.Timestamp,
		); err != nil {
			return nil, err
		}
		if entityID.Valid {
			id := entityID.String
			entry.EntityID = &id
		}
		entry.Timestamp = entry.Timestamp.UTC()
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
