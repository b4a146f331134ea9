package domain

import (
	"time"
)

// Assessment is the outcome of a risk analysis on a single transaction.
// Transient per evaluation; a copy is kept in the repository as history.
type Assessment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Timestamp     time.Time `json:"timestamp"`

	IsFraudulent      bool     `json:"isFraudulent"`
	IsSuspicious      bool     `json:"isSuspicious"`
	NeedsConfirmation bool     `json:"needsConfirmation"`
	Reasons           []string `json:"reasons"`
	Score             float64  `json:"score"`
	Status            string   `json:"status"`
	PopupMessage      string   `json:"popupMessage,omitempty"`

	// Source records which path produced the assessment: "model", "rule"
	// from the detection service, or "local" from the fallback heuristic.
	Source string `json:"source"`
}
