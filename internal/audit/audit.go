// Package audit records append-only audit log entries for user-visible mutations.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Recorder writes audit entries through whichever Store it is handed,
// so that callers inside WithinTx commit the entry with their own writes.
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a recorder stamping entries with the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends one entry. details is encoded as compact JSON.
func (r *Recorder) Record(ctx context.Context, store domain.Store, userID, action, entityType, entityID string, details any) (*domain.AuditLog, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit details: %w", err)
	}

	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		Details:    string(payload),
		Timestamp:  r.now().UTC(),
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}

	if err := store.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the user's audit trail, newest first.
func List(ctx context.Context, store domain.Store, userID string) ([]*domain.AuditLog, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return store.ListAudit(ctx, userID)
}

// TransactionDetails is the payload of CREATE_TRANSACTION entries.
type TransactionDetails struct {
	Amount     decimal.Decimal        `json:"amount"`
	Type       domain.TransactionType `json:"type"`
	Category   string                 `json:"category"`
	Fraudulent bool                   `json:"fraudulent"`
}

// AlertDetails is the payload of RESOLVE_FRAUD_ALERT entries.
type AlertDetails struct {
	AlertID  string           `json:"alertId"`
	Severity domain.RiskLevel `json:"severity"`
}

// SubscriptionDetails is the payload of IGNORE_SUBSCRIPTION entries.
type SubscriptionDetails struct {
	SubscriptionID string `json:"subscriptionId"`
	Merchant       string `json:"merchant"`
}
