package domain

import (
	"time"
)

// Severity buckets a fraud score into a coarse alert class.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityForScore maps a fraud score to a severity bucket.
// Cutoffs: >0.8 high, >0.6 medium, else low.
func SeverityForScore(score float64) Severity {
	switch {
	case score > 0.8:
		return SeverityHigh
	case score > 0.6:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FraudNotification wraps a flagged transaction with alert metadata and its
// read/reviewed lifecycle. Mutated in place through store actions; never
// deleted (full history kept in memory for the session).
type FraudNotification struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transactionId"`
	Timestamp     time.Time   `json:"timestamp"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Severity      Severity    `json:"severity"`
	Read          bool        `json:"read"`
	Reviewed      bool        `json:"reviewed"`
	ReviewedBy    string      `json:"reviewedBy,omitempty"`
	ReviewNotes   string      `json:"reviewNotes,omitempty"`
	Transaction   Transaction `json:"transaction"`
}

// Alert variants understood by the toast sink.
const (
	AlertVariantDefault     = "default"
	AlertVariantDestructive = "destructive"
)

// Alert is the payload handed to the toast/desktop-notification sink.
type Alert struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Alerter is the side-effect sink for notification alerts (toast plus
// optional desktop notification). Implementations must not block store
// mutations; effects are executed after state transitions commit.
type Alerter interface {
	Notify(alert Alert)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(alert Alert)

// Notify calls f(alert).
func (f AlerterFunc) Notify(alert Alert) { f(alert) }
