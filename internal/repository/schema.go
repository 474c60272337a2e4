package repository

// Schema definitions for the FinSight database.
// Compatible with both SQLite and PostgreSQL.
// Booleans are stored as INTEGER 0/1 and instants as UTC TIMESTAMP.

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    amount NUMERIC(19,2) NOT NULL,
    type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    transaction_date TIMESTAMP NOT NULL,
    fraudulent INTEGER NOT NULL DEFAULT 0,
    fraud_score DOUBLE PRECISION,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, transaction_date DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_user_fraud ON transactions(user_id, fraudulent);
CREATE INDEX IF NOT EXISTS idx_transactions_user_category ON transactions(user_id, category);
`

const schemaFraudAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    transaction_id TEXT NOT NULL UNIQUE REFERENCES transactions(id),
    message TEXT NOT NULL,
    severity TEXT NOT NULL,
    resolved INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_user ON fraud_alerts(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_resolved ON fraud_alerts(user_id, resolved);
`

// schemaSubscriptions keys detection results by (user, normalized merchant)
// so that re-detection updates rather than duplicates.
const schemaSubscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    merchant TEXT NOT NULL,
    merchant_key TEXT NOT NULL,
    avg_amount NUMERIC(19,2) NOT NULL,
    last_paid_date DATE NOT NULL,
    next_due_date DATE NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (user_id, merchant_key)
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_user_due ON subscriptions(user_id, next_due_date);
`

const schemaAuditLogs = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT,
    details TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id, timestamp DESC);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaUsers,
		schemaTransactions,
		schemaFraudAlerts,
		schemaSubscriptions,
		schemaAuditLogs,
	}
}
