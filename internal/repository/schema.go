package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    payer_id TEXT NOT NULL,
    payer_name TEXT,
    payer_bank TEXT,
    payee_id TEXT NOT NULL,
    payee_name TEXT,
    payee_bank TEXT,
    channel TEXT NOT NULL,
    payment_mode TEXT,
    payment_gateway TEXT,
    country TEXT,
    ip_country TEXT,
    is_fraud_predicted INTEGER NOT NULL DEFAULT 0,
    is_fraud_reported INTEGER NOT NULL DEFAULT 0,
    fraud_score REAL NOT NULL DEFAULT 0,
    fraud_reason TEXT,
    fraud_source TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_payer ON transactions(payer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_fraud ON transactions(is_fraud_predicted);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tx_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    is_fraudulent INTEGER NOT NULL DEFAULT 0,
    is_suspicious INTEGER NOT NULL DEFAULT 0,
    needs_confirmation INTEGER NOT NULL DEFAULT 0,
    reasons TEXT NOT NULL,
    score REAL NOT NULL,
    status TEXT NOT NULL,
    popup_message TEXT,
    source TEXT
);

CREATE INDEX IF NOT EXISTS idx_assessments_tx ON assessments(tx_id);
CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRuleConfigs,
		schemaAssessments,
	}
}
