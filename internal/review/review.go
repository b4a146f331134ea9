// Package review implements the two human decision surfaces of the
// dashboard: final review of fraud alerts, and the approve/reject flow for
// suspicious transactions awaiting confirmation.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
)

// ErrDecisionInFlight rejects a concurrent decision on a transaction that
// already has one in progress. Exactly one outcome path may execute per
// transaction at a time.
var ErrDecisionInFlight = errors.New("decision already in flight for this transaction")

// ErrUnknownAction rejects a decision action outside the supported set.
var ErrUnknownAction = errors.New("unknown decision action")

// Decision is the operator's choice for a suspicious transaction.
type Decision string

const (
	DecisionFraud      Decision = "fraud"
	DecisionLegitimate Decision = "legitimate"
	// DecisionCallback simulates a phone callback to the payer and then
	// confirms the transaction as legitimate.
	DecisionCallback Decision = "callback"
)

// defaultReviewer is recorded when the caller does not identify themselves.
const defaultReviewer = "Engineer"

// FraudReviewer records final fraud/not-fraud decisions on notifications.
type FraudReviewer struct {
	store *notify.Store
}

// NewFraudReviewer creates a reviewer backed by the notification store.
func NewFraudReviewer(store *notify.Store) *FraudReviewer {
	return &FraudReviewer{store: store}
}

// Review marks the notification as reviewed. The notes are prefixed with the
// verdict so downstream consumers can distinguish confirmed from dismissed
// alerts by inspecting the notes alone.
func (r *FraudReviewer) Review(id string, confirm bool, reviewedBy, notes string) {
	verdict := "Dismissed"
	if confirm {
		verdict = "Confirmed"
	}
	if reviewedBy == "" {
		reviewedBy = defaultReviewer
	}
	r.store.MarkAsReviewed(id, reviewedBy, fmt.Sprintf("%s as fraud. %s", verdict, notes))
}

// Confirmer is the slice of the detection client the suspicious flow needs.
type Confirmer interface {
	ConfirmTransaction(ctx context.Context, transactionID string) *domain.ConfirmationResponse
}

// TransactionSaver persists the reviewed copy of a transaction. Optional.
type TransactionSaver interface {
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
}

// Outcome describes what a suspicious-transaction decision did.
type Outcome struct {
	Action       Decision                     `json:"action"`
	Message      string                       `json:"message"`
	Confirmation *domain.ConfirmationResponse `json:"confirmation,omitempty"`
}

// SuspiciousReviewer resolves transactions flagged as needing confirmation.
// One decision per transaction may be in flight at a time.
type SuspiciousReviewer struct {
	store     *notify.Store
	confirmer Confirmer
	saver     TransactionSaver

	// callbackDelay simulates the duration of a phone callback.
	callbackDelay time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewSuspiciousReviewer creates a reviewer. The saver may be nil when
// reviewed transactions need not be written back to the dataset.
func NewSuspiciousReviewer(store *notify.Store, confirmer Confirmer, saver TransactionSaver) *SuspiciousReviewer {
	return &SuspiciousReviewer{
		store:         store,
		confirmer:     confirmer,
		saver:         saver,
		callbackDelay: 2 * time.Second,
		inFlight:      make(map[string]bool),
	}
}

// SetCallbackDelay overrides the simulated callback duration.
func (r *SuspiciousReviewer) SetCallbackDelay(d time.Duration) {
	r.callbackDelay = d
}

// Decide executes exactly one outcome path for the transaction. Concurrent
// calls for the same transaction fail with ErrDecisionInFlight.
func (r *SuspiciousReviewer) Decide(ctx context.Context, tx *domain.Transaction, score float64, action Decision) (*Outcome, error) {
	if err := r.begin(tx.ID); err != nil {
		return nil, err
	}
	defer r.end(tx.ID)

	switch action {
	case DecisionFraud:
		return r.markAsFraud(ctx, tx, score)
	case DecisionLegitimate:
		return r.confirmLegitimate(ctx, tx.ID)
	case DecisionCallback:
		// Simulated phone callback, then the legitimate path.
		select {
		case <-time.After(r.callbackDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return r.confirmLegitimate(ctx, tx.ID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (r *SuspiciousReviewer) markAsFraud(ctx context.Context, tx *domain.Transaction, score float64) (*Outcome, error) {
	if score == 0 {
		score = 0.9
	}

	flagged := tx.WithReview(true, score)
	if r.saver != nil {
		if err := r.saver.SaveTransaction(ctx, &flagged); err != nil {
			return nil, fmt.Errorf("failed to save reviewed transaction: %w", err)
		}
	}

	r.store.Add(notify.AddInput{
		TransactionID: tx.ID,
		Timestamp:     time.Now().UTC(),
		Title:         "Transaction Marked as Fraud",
		Description:   fmt.Sprintf("Transaction %s... has been manually marked as fraud.", shortID(tx.ID)),
		Severity:      domain.SeverityHigh,
		Transaction:   flagged,
	})

	return &Outcome{
		Action:  DecisionFraud,
		Message: "The transaction has been flagged and added to fraud alerts",
	}, nil
}

func (r *SuspiciousReviewer) confirmLegitimate(ctx context.Context, transactionID string) (*Outcome, error) {
	resp := r.confirmer.ConfirmTransaction(ctx, transactionID)
	return &Outcome{
		Action:       DecisionLegitimate,
		Message:      "The transaction has been verified and will be processed",
		Confirmation: resp,
	}, nil
}

func (r *SuspiciousReviewer) begin(txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[txID] {
		return ErrDecisionInFlight
	}
	r.inFlight[txID] = true
	return nil
}

func (r *SuspiciousReviewer) end(txID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, txID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
