// Package dataset ships an anonymized sample of payment transactions so the
// dashboard has data to show out of the box. The raw records mirror the
// anonymized export format of the upstream payment feed.
package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// rawDates use the DD-MM-YYYY HH:MM layout of the anonymized export.
const rawDateLayout = "02-01-2006 15:04"

// RawTransaction is one record of the anonymized feed.
type RawTransaction struct {
	TransactionAmount float64 `json:"transaction_amount"`
	TransactionDate   string  `json:"transaction_date"`
	Channel           string  `json:"transaction_channel"`
	IsFraud           int     `json:"is_fraud"`
	PaymentMode       int     `json:"transaction_payment_mode_anonymous"`
	GatewayBank       int     `json:"payment_gateway_bank_anonymous"`
	PayerEmail        string  `json:"payer_email_anonymous"`
	TransactionID     string  `json:"transaction_id_anonymous"`
	PayeeID           string  `json:"payee_id_anonymous"`
}

var rawTransactions = []RawTransaction{
	{TransactionAmount: 3606, TransactionDate: "01-11-2024 00:00", Channel: "w", IsFraud: 0, PaymentMode: 10, GatewayBank: 0, PayerEmail: "ed340a2dbe10dda4", TransactionID: "ANON_0", PayeeID: "ANON_0"},
	{TransactionAmount: 599, TransactionDate: "01-11-2024 00:00", Channel: "mobile", IsFraud: 0, PaymentMode: 10, GatewayBank: 6, PayerEmail: "6cf63ef7f4782059", TransactionID: "ANON_1", PayeeID: "ANON_1"},
	{TransactionAmount: 30, TransactionDate: "01-11-2024 00:00", Channel: "w", IsFraud: 0, PaymentMode: 10, GatewayBank: 0, PayerEmail: "ed340a2dbe10dda4", TransactionID: "ANON_2", PayeeID: "ANON_0"},
	{TransactionAmount: 99, TransactionDate: "01-11-2024 00:00", Channel: "mobile", IsFraud: 0, PaymentMode: 11, GatewayBank: 0, PayerEmail: "33946b46bf9e7d45", TransactionID: "ANON_3", PayeeID: "ANON_2"},
	{TransactionAmount: 299, TransactionDate: "01-11-2024 00:01", Channel: "mobile", IsFraud: 0, PaymentMode: 11, GatewayBank: 0, PayerEmail: "8aa13ceb67f69868", TransactionID: "ANON_4", PayeeID: "ANON_1"},
	{TransactionAmount: 3510, TransactionDate: "01-11-2024 00:01", Channel: "w", IsFraud: 0, PaymentMode: 0, GatewayBank: 6, PayerEmail: "ed340a2dbe10dda4", TransactionID: "ANON_5", PayeeID: "ANON_0"},
	{TransactionAmount: 10, TransactionDate: "01-11-2024 00:03", Channel: "w", IsFraud: 0, PaymentMode: 0, GatewayBank: 6, PayerEmail: "ed340a2dbe10dda4", TransactionID: "ANON_6", PayeeID: "ANON_0"},
	{TransactionAmount: 299, TransactionDate: "01-11-2024 00:03", Channel: "mobile", IsFraud: 0, PaymentMode: 11, GatewayBank: 0, PayerEmail: "e57de59fbff612f9", TransactionID: "ANON_7", PayeeID: "ANON_1"},
	{TransactionAmount: 205.9, TransactionDate: "01-11-2024 00:03", Channel: "W", IsFraud: 0, PaymentMode: 0, GatewayBank: 6, PayerEmail: "edc2be45b2c014a5", TransactionID: "ANON_8", PayeeID: "ANON_3"},
	{TransactionAmount: 24999, TransactionDate: "01-11-2024 02:14", Channel: "w", IsFraud: 1, PaymentMode: 2, GatewayBank: 3, PayerEmail: "91c2fbb5e2a40d8f", TransactionID: "ANON_9", PayeeID: "ANON_4"},
	{TransactionAmount: 1250, TransactionDate: "01-11-2024 09:30", Channel: "mobile", IsFraud: 0, PaymentMode: 11, GatewayBank: 2, PayerEmail: "5be1f4c90aa37e12", TransactionID: "ANON_10", PayeeID: "ANON_2"},
	{TransactionAmount: 87500, TransactionDate: "01-11-2024 03:42", Channel: "w", IsFraud: 1, PaymentMode: 2, GatewayBank: 3, PayerEmail: "91c2fbb5e2a40d8f", TransactionID: "ANON_11", PayeeID: "ANON_4"},
	{TransactionAmount: 450, TransactionDate: "01-11-2024 11:15", Channel: "mobile", IsFraud: 0, PaymentMode: 10, GatewayBank: 1, PayerEmail: "c3ad41e80b27f630", TransactionID: "ANON_12", PayeeID: "ANON_5"},
	{TransactionAmount: 7800, TransactionDate: "01-11-2024 14:05", Channel: "w", IsFraud: 0, PaymentMode: 0, GatewayBank: 6, PayerEmail: "ed340a2dbe10dda4", TransactionID: "ANON_13", PayeeID: "ANON_0"},
	{TransactionAmount: 132000, TransactionDate: "01-11-2024 16:40", Channel: "w", IsFraud: 0, PaymentMode: 2, GatewayBank: 4, PayerEmail: "0fd2aa6e914b8c57", TransactionID: "ANON_14", PayeeID: "ANON_6"},
	{TransactionAmount: 62, TransactionDate: "01-11-2024 18:22", Channel: "mobile", IsFraud: 0, PaymentMode: 11, GatewayBank: 0, PayerEmail: "8aa13ceb67f69868", TransactionID: "ANON_15", PayeeID: "ANON_1"},
}

// Raw returns the embedded sample records.
func Raw() []RawTransaction {
	return rawTransactions
}

// Formatted converts the raw records into the dashboard's transaction shape.
// Known-fraud records arrive pre-flagged with a high score; the rest carry a
// low baseline score.
func Formatted() []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(rawTransactions))
	for i, raw := range rawTransactions {
		out = append(out, raw.format(i))
	}
	return out
}

func (raw RawTransaction) format(index int) *domain.Transaction {
	status := domain.TxStatusCompleted
	if raw.IsFraud == 1 {
		status = domain.TxStatusFlagged
	}

	tx := &domain.Transaction{
		ID:        raw.TransactionID,
		Amount:    raw.TransactionAmount,
		Currency:  "INR",
		Timestamp: raw.parseTimestamp(),
		Status:    status,
		Payer: domain.Party{
			ID:   fmt.Sprintf("payer-%d", index),
			Name: fmt.Sprintf("Payer %d (%s...)", index, shortHash(raw.PayerEmail)),
			Bank: fmt.Sprintf("Bank %d", raw.GatewayBank),
		},
		Payee: domain.Party{
			ID:   raw.PayeeID,
			Name: "Payee " + raw.PayeeID,
			Bank: fmt.Sprintf("Bank %d", raw.GatewayBank),
		},
		Channel:        raw.normalizedChannel(),
		PaymentMode:    fmt.Sprintf("mode_%d", raw.PaymentMode),
		PaymentGateway: fmt.Sprintf("gateway_%d", raw.GatewayBank),
		Country:        "IN",
		IPCountry:      "IN",
		CreatedAt:      time.Now().UTC(),
	}

	if raw.IsFraud == 1 {
		tx.IsFraudPredicted = true
		tx.IsFraudReported = true
		tx.FraudScore = 0.85
		tx.FraudReason = "Unusual transaction pattern"
		tx.FraudSource = domain.SourceModel
	} else {
		tx.FraudScore = 0.15
	}

	return tx
}

// Seed writes the formatted sample into the repository. Idempotent: the
// repository upserts by transaction id.
func Seed(ctx context.Context, repo domain.Repository) (int, error) {
	transactions := Formatted()
	for _, tx := range transactions {
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			return 0, fmt.Errorf("failed to seed transaction %s: %w", tx.ID, err)
		}
	}
	return len(transactions), nil
}

func (raw RawTransaction) parseTimestamp() time.Time {
	ts, err := time.Parse(rawDateLayout, raw.TransactionDate)
	if err != nil {
		return time.Now().UTC()
	}
	return ts.UTC()
}

func (raw RawTransaction) normalizedChannel() string {
	if strings.EqualFold(raw.Channel, "mobile") {
		return domain.ChannelMobile
	}
	return domain.ChannelWeb
}

func shortHash(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
