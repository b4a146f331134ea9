package detection

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/rules"
)

// Score cutoffs for the embedded detection service.
const (
	fraudCutoff      = 0.7
	suspiciousCutoff = 0.5
)

// VelocityCounter tracks recent transactions per payer. Record notes one
// transaction and returns the running cache-counter count; Count is the
// authoritative repository count.
type VelocityCounter interface {
	Record(ctx context.Context, payerID string, windowSecs int) (int64, error)
	Count(ctx context.Context, payerID string, windowSecs int) (int64, error)
}

// Service implements the detection wire contract locally: the built-in rule
// evaluator plus any operator-defined CEL rules score the request, so a single
// kestrel process can serve as its own detection backend.
type Service struct {
	engine   *rules.Engine
	opts     rules.Options
	velocity VelocityCounter
	repo     domain.Repository

	velocityWindowSecs int
}

// NewService creates an embedded detection service.
func NewService(engine *rules.Engine, opts rules.Options, velocity VelocityCounter, repo domain.Repository, velocityWindowSecs int) *Service {
	if velocityWindowSecs <= 0 {
		velocityWindowSecs = 3600
	}
	return &Service{
		engine:             engine,
		opts:               opts,
		velocity:           velocity,
		repo:               repo,
		velocityWindowSecs: velocityWindowSecs,
	}
}

// Detect scores a detection request and maps it onto the wire response.
// Status mapping: score >= 0.7 Fraud; >= 0.5 (or a review-band hit from a
// custom rule) Suspicious; else Complete.
func (s *Service) Detect(ctx context.Context, req *domain.DetectionRequest) *domain.DetectionResponse {
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	recent := req.RecentTransactions
	if s.velocity != nil && req.PayerID != "" {
		running, err := s.velocity.Record(ctx, req.PayerID, s.velocityWindowSecs)
		if err != nil {
			slog.Warn("failed to record velocity", "payer_id", req.PayerID, "error", err)
		}
		if recent == 0 {
			// The cache counter is the hot path. It includes this
			// transaction, and a fresh window says nothing about
			// history, so fall back to the repository count then.
			if running > 1 {
				recent = int(running) - 1
			} else if count, cerr := s.velocity.Count(ctx, req.PayerID, s.velocityWindowSecs); cerr == nil {
				recent = int(count)
			}
		}
	}

	builtin := rules.Evaluate(rules.Input{
		Amount:             req.Amount,
		Country:            req.Country,
		IPCountry:          req.IPCountry,
		Timestamp:          ts,
		RecentTransactions: recent,
	}, s.opts)

	score := builtin.Score
	reasons := builtin.Reasons
	reviewHit := false

	if s.engine != nil && s.engine.RulesCount() > 0 {
		results, err := s.engine.EvaluateAll(ctx, &rules.EvaluateInput{
			TxID:           req.TransactionID,
			PayerID:        req.PayerID,
			Amount:         req.Amount,
			Channel:        req.Channel,
			PaymentMethod:  req.PaymentMethod,
			Country:        req.Country,
			IPCountry:      req.IPCountry,
			Hour:           ts.Hour(),
			VelocityWindow: s.velocityWindowSecs,
		})
		if err != nil {
			slog.Error("custom rule evaluation failed", "transaction_id", req.TransactionID, "error", err)
		}
		for _, r := range results {
			switch r.SubRuleRef {
			case domain.RuleOutcomeFail:
				weight := r.Weight
				if weight <= 0 {
					weight = 1.0
				}
				score += r.Score * weight
				reasons = append(reasons, r.Reason)
			case domain.RuleOutcomeReview:
				reviewHit = true
				reasons = append(reasons, r.Reason)
			}
		}
	}

	score = math.Round(score*100) / 100

	status := domain.StatusComplete
	popup := ""
	switch {
	case score >= fraudCutoff:
		status = domain.StatusFraud
	case score >= suspiciousCutoff || reviewHit:
		status = domain.StatusSuspicious
		popup = "Please verify this high-value transaction before processing."
	}

	reason := "No risk indicators"
	if len(reasons) > 0 {
		reason = reasons[0]
	}

	resp := &domain.DetectionResponse{
		TransactionID:    req.TransactionID,
		PayerID:          req.PayerID,
		Amount:           req.Amount,
		IsFraudPredicted: status == domain.StatusFraud,
		FraudSource:      domain.SourceRule,
		FraudReason:      reason,
		FraudScore:       score,
		Status:           status,
		UserVerified:     false,
		PopupMessage:     popup,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	s.saveAssessment(ctx, req.TransactionID, resp, reasons)

	return resp
}

// Confirm records a human verification of a suspicious transaction.
func (s *Service) Confirm(ctx context.Context, transactionID string) *domain.ConfirmationResponse {
	if s.repo != nil {
		if tx, err := s.repo.GetTransaction(ctx, transactionID); err == nil && tx != nil {
			updated := *tx
			updated.Status = domain.TxStatusCompleted
			if err := s.repo.SaveTransaction(ctx, &updated); err != nil {
				slog.Warn("failed to persist confirmation", "transaction_id", transactionID, "error", err)
			}
		}
	}

	return &domain.ConfirmationResponse{
		Message:       "Transaction confirmed and marked for processing",
		Status:        domain.StatusComplete,
		TransactionID: transactionID,
		UserVerified:  true,
	}
}

func (s *Service) saveAssessment(ctx context.Context, txID string, resp *domain.DetectionResponse, reasons []string) {
	if s.repo == nil {
		return
	}

	a := &domain.Assessment{
		ID:                uuid.New().String(),
		TransactionID:     txID,
		Timestamp:         time.Now().UTC(),
		IsFraudulent:      resp.Status == domain.StatusFraud,
		IsSuspicious:      resp.Status == domain.StatusSuspicious,
		NeedsConfirmation: resp.Status == domain.StatusSuspicious,
		Reasons:           reasons,
		Score:             resp.FraudScore,
		Status:            resp.Status,
		PopupMessage:      resp.PopupMessage,
		Source:            resp.FraudSource,
	}

	if err := s.repo.SaveAssessment(ctx, a); err != nil {
		slog.Warn("failed to save assessment", "transaction_id", txID, "error", err)
	}
}
