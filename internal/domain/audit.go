package domain

import "time"

// AuditLog is an append-only record of a user-visible mutation.
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   *string   `json:"entityId"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
}

// Audit actions.
const (
	ActionCreateTransaction  = "CREATE_TRANSACTION"
	ActionResolveFraudAlert  = "RESOLVE_FRAUD_ALERT"
	ActionIgnoreSubscription = "IGNORE_SUBSCRIPTION"
)

// Audited entity types.
const (
	EntityTransaction  = "TRANSACTION"
	EntityFraudAlert   = "FRAUD_ALERT"
	EntitySubscription = "SUBSCRIPTION"
)
