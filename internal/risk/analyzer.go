// Package risk orchestrates fraud assessment for the dashboard: it consults
// the detection service, interprets the verdict, and raises fraud
// notifications. When the detection service is unreachable it degrades to a
// local heuristic instead of failing the flow.
package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
)

// Detector is the slice of the detection client the analyzer needs.
type Detector interface {
	DetectFraud(ctx context.Context, tx *domain.Transaction, recentTransactions int) (*domain.DetectionResponse, error)
}

// Notifier is the slice of the notification store the analyzer needs.
type Notifier interface {
	Add(input notify.AddInput) *domain.FraudNotification
}

// Analyzer turns one transaction into one Assessment with exactly one
// outcome: a fraud notification, a confirmation request, or nothing.
type Analyzer struct {
	detector Detector
	notifier Notifier
	scores   ScoreProvider
}

// New creates an analyzer. A nil score provider falls back to the demo
// provider.
func New(detector Detector, notifier Notifier, scores ScoreProvider) *Analyzer {
	if scores == nil {
		scores = DemoScoreProvider{}
	}
	return &Analyzer{
		detector: detector,
		notifier: notifier,
		scores:   scores,
	}
}

// Analyze assesses one transaction. The detection client resolves even on
// transport failure; its error return is the signal to switch to the local
// heuristic path.
func (a *Analyzer) Analyze(ctx context.Context, tx *domain.Transaction) *domain.Assessment {
	resp, err := a.detector.DetectFraud(ctx, tx, 0)
	if err != nil {
		return a.analyzeLocally(tx)
	}

	needsConfirmation := resp.Status == domain.StatusSuspicious
	isFraudulent := resp.IsFraudPredicted || resp.Status == domain.StatusFraud

	// Suspicious verdicts go to a human first; only settled fraud raises an
	// alert straight away.
	if isFraudulent && !needsConfirmation {
		a.raiseAlert(tx, resp.FraudScore,
			fmt.Sprintf("Transaction %s... flagged. Reason: %s", shortID(tx.ID), resp.FraudReason))
	}

	return &domain.Assessment{
		ID:                uuid.NewString(),
		TransactionID:     tx.ID,
		Timestamp:         time.Now().UTC(),
		IsFraudulent:      isFraudulent,
		IsSuspicious:      needsConfirmation,
		NeedsConfirmation: needsConfirmation,
		Reasons:           []string{resp.FraudReason},
		Score:             resp.FraudScore,
		Status:            resp.Status,
		PopupMessage:      resp.PopupMessage,
		Source:            resp.FraudSource,
	}
}

// analyzeLocally is the degraded path used when detection is unreachable.
func (a *Analyzer) analyzeLocally(tx *domain.Transaction) *domain.Assessment {
	score := a.scores.Score(tx)
	isFraudulent := score > 0.7
	isSuspicious := tx.Amount > 100000 || (!isFraudulent && score > 0.5)

	var reasons []string
	if tx.Amount > 10000 {
		reasons = append(reasons, fmt.Sprintf("High amount (%v)", tx.Amount))
	}
	if hour := tx.Timestamp.Hour(); hour >= 22 || hour <= 5 {
		reasons = append(reasons, fmt.Sprintf("Unusual transaction time (%s)", tx.Timestamp.Format("15:04:05")))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Unusual transaction pattern detected")
	}

	status := domain.StatusComplete
	popup := ""
	switch {
	case isSuspicious:
		status = domain.StatusSuspicious
		popup = "Please verify this high-value transaction before processing."
	case isFraudulent:
		status = domain.StatusFraud
	}

	if isFraudulent && !isSuspicious {
		a.raiseAlert(tx, score,
			fmt.Sprintf("Transaction %s... flagged. Reasons: %s", shortID(tx.ID), strings.Join(reasons, ", ")))
	}

	return &domain.Assessment{
		ID:                uuid.NewString(),
		TransactionID:     tx.ID,
		Timestamp:         time.Now().UTC(),
		IsFraudulent:      isFraudulent,
		IsSuspicious:      isSuspicious,
		NeedsConfirmation: isSuspicious,
		Reasons:           reasons,
		Score:             score,
		Status:            status,
		PopupMessage:      popup,
		Source:            domain.SourceLocal,
	}
}

func (a *Analyzer) raiseAlert(tx *domain.Transaction, score float64, description string) {
	if a.notifier == nil {
		return
	}

	flagged := *tx
	flagged.IsFraudPredicted = true
	flagged.FraudScore = score

	a.notifier.Add(notify.AddInput{
		TransactionID: tx.ID,
		Timestamp:     time.Now().UTC(),
		Title:         "Fraud Alert: Suspicious Transaction",
		Description:   description,
		Severity:      domain.SeverityForScore(score),
		Transaction:   flagged,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
