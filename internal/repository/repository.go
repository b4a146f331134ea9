// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction. Upsert: review decisions write back
// updated fraud fields under the same id.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, amount, currency, timestamp, status,
			payer_id, payer_name, payer_bank,
			payee_id, payee_name, payee_bank,
			channel, payment_mode, payment_gateway,
			country, ip_country,
			is_fraud_predicted, is_fraud_reported, fraud_score, fraud_reason, fraud_source,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			is_fraud_predicted = excluded.is_fraud_predicted,
			is_fraud_reported = excluded.is_fraud_reported,
			fraud_score = excluded.fraud_score,
			fraud_reason = excluded.fraud_reason,
			fraud_source = excluded.fraud_source
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.Amount, tx.Currency, tx.Timestamp, tx.Status,
		tx.Payer.ID, tx.Payer.Name, tx.Payer.Bank,
		tx.Payee.ID, tx.Payee.Name, tx.Payee.Bank,
		tx.Channel, tx.PaymentMode, tx.PaymentGateway,
		tx.Country, tx.IPCountry,
		boolToInt(tx.IsFraudPredicted), boolToInt(tx.IsFraudReported),
		tx.FraudScore, tx.FraudReason, tx.FraudSource,
		createdAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := transactionColumns + ` WHERE id = ?`

	tx, err := r.scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions returns the most recent transactions, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := transactionColumns + ` ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// CountTransactionsByPayer counts a payer's transactions since the given
// time. Feeds the velocity check.
func (r *SQLRepository) CountTransactionsByPayer(ctx context.Context, payerID string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE payer_id = ? AND timestamp >= ?`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), payerID, since).Scan(&count)
	return count, err
}

// GetTransactionStats returns the aggregate counts shown as summary metrics.
func (r *SQLRepository) GetTransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_fraud_predicted), 0),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN channel = 'web' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN channel = 'mobile' THEN 1 ELSE 0 END), 0)
		FROM transactions
	`

	var stats domain.TransactionStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalTransactions,
		&stats.FraudulentTransactions,
		&stats.TotalAmount,
		&stats.WebTransactions,
		&stats.MobileTransactions,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalTransactions > 0 {
		stats.FraudPercentage = float64(stats.FraudulentTransactions) / float64(stats.TotalTransactions) * 100
	}

	return &stats, nil
}

// SaveRuleConfig stores a rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Weight, boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule configuration.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListRuleConfigs retrieves all active rule configurations.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveAssessment stores an assessment result.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(a.Reasons)

	query := `
		INSERT INTO assessments (
			id, tx_id, timestamp, is_fraudulent, is_suspicious, needs_confirmation,
			reasons, score, status, popup_message, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.TransactionID, a.Timestamp,
		boolToInt(a.IsFraudulent), boolToInt(a.IsSuspicious), boolToInt(a.NeedsConfirmation),
		string(reasons), a.Score, a.Status, a.PopupMessage, a.Source,
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `
		SELECT id, tx_id, timestamp, is_fraudulent, is_suspicious, needs_confirmation,
			   reasons, score, status, popup_message, source
		FROM assessments
		WHERE id = ?
	`

	var a domain.Assessment
	var reasons string
	var fraudulent, suspicious, confirm int

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.TransactionID, &a.Timestamp,
		&fraudulent, &suspicious, &confirm,
		&reasons, &a.Score, &a.Status, &a.PopupMessage, &a.Source,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.IsFraudulent = fraudulent == 1
	a.IsSuspicious = suspicious == 1
	a.NeedsConfirmation = confirm == 1
	json.Unmarshal([]byte(reasons), &a.Reasons)

	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const transactionColumns = `
	SELECT id, amount, currency, timestamp, status,
		   payer_id, payer_name, payer_bank,
		   payee_id, payee_name, payee_bank,
		   channel, payment_mode, payment_gateway,
		   country, ip_country,
		   is_fraud_predicted, is_fraud_reported, fraud_score, fraud_reason, fraud_source,
		   created_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var predicted, reported int

	err := row.Scan(
		&tx.ID, &tx.Amount, &tx.Currency, &tx.Timestamp, &tx.Status,
		&tx.Payer.ID, &tx.Payer.Name, &tx.Payer.Bank,
		&tx.Payee.ID, &tx.Payee.Name, &tx.Payee.Bank,
		&tx.Channel, &tx.PaymentMode, &tx.PaymentGateway,
		&tx.Country, &tx.IPCountry,
		&predicted, &reported, &tx.FraudScore, &tx.FraudReason, &tx.FraudSource,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.IsFraudPredicted = predicted == 1
	tx.IsFraudReported = reported == 1
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
