package domain

import (
	"time"
)

// Transaction statuses as shown on the dashboard.
const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusFlagged   = "flagged"
)

// Transaction channels.
const (
	ChannelWeb    = "web"
	ChannelMobile = "mobile"
)

// Party identifies a payer or payee on a transaction.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Bank string `json:"bank,omitempty"`
}

// Transaction is a synthetic/anonymized payment transaction displayed on the
// dashboard. The record itself is immutable; review decisions produce a copy
// with updated fraud fields via WithReview.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`

	Payer Party `json:"payer"`
	Payee Party `json:"payee"`

	Channel        string `json:"channel"`
	PaymentMode    string `json:"paymentMode"`
	PaymentGateway string `json:"paymentGateway"`

	// Geo context used by the rule evaluator.
	Country   string `json:"country,omitempty"`
	IPCountry string `json:"ipCountry,omitempty"`

	// Fraud assessment fields.
	IsFraudPredicted bool    `json:"is_fraud_predicted"`
	IsFraudReported  bool    `json:"is_fraud_reported"`
	FraudScore       float64 `json:"fraud_score"`
	FraudReason      string  `json:"fraud_reason,omitempty"`
	FraudSource      string  `json:"fraud_source,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// WithReview returns a copy of the transaction with fraud fields updated by a
// human review decision. The receiver is not modified.
func (t Transaction) WithReview(reported bool, score float64) Transaction {
	t.IsFraudReported = reported
	if reported {
		t.IsFraudPredicted = true
		t.Status = TxStatusFlagged
	}
	if score > 0 {
		t.FraudScore = score
	}
	return t
}

// TransactionStats are the aggregate counts rendered as summary metrics.
type TransactionStats struct {
	TotalTransactions      int     `json:"totalTransactions"`
	FraudulentTransactions int     `json:"fraudulentTransactions"`
	FraudPercentage        float64 `json:"fraudPercentage"`
	TotalAmount            float64 `json:"totalAmount"`
	WebTransactions        int     `json:"webTransactions"`
	MobileTransactions     int     `json:"mobileTransactions"`
}
