// Package worker provides async transaction screening off the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/risk"
)

// Worker screens transactions published to the screening topic through the
// risk analyzer. Callers fire-and-forget: the assessment (and any fraud
// notification) materializes on the notification store and repository.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	analyzer *risk.Analyzer

	subscriptions []domain.Subscription
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// WorkerCount is the number of screenings processed concurrently.
	WorkerCount int
}

// NewWorker creates a new async screening worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, analyzer *risk.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the screening topic.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 4
	}
	w.sem = make(chan struct{}, count)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionScreen, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("screening worker started",
		"topic", domain.TopicTransactionScreen,
		"worker_count", count,
	)

	return nil
}

// ScreenRequest is the message payload for transaction screening. Either a
// full transaction or just a transaction ID to load from the repository.
type ScreenRequest struct {
	TransactionID string              `json:"transactionId,omitempty"`
	Transaction   *domain.Transaction `json:"transaction,omitempty"`
}

// handleMessage dispatches a screening onto the worker pool.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req ScreenRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse screening message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.screen(w.ctx, &req)
	}()

	return nil
}

// screen resolves the transaction and runs the analyzer.
func (w *Worker) screen(ctx context.Context, req *ScreenRequest) {
	start := time.Now()

	tx := req.Transaction
	if tx == nil {
		if req.TransactionID == "" {
			slog.Error("screening message carries neither transaction nor id")
			return
		}
		if w.repo == nil {
			slog.Error("cannot resolve transaction without repository",
				"transaction_id", req.TransactionID,
			)
			return
		}
		loaded, err := w.repo.GetTransaction(ctx, req.TransactionID)
		if err != nil {
			slog.Error("failed to load transaction for screening",
				"transaction_id", req.TransactionID,
				"error", err,
			)
			return
		}
		tx = loaded
	}

	assessment := w.analyzer.Analyze(ctx, tx)

	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, assessment); err != nil {
			slog.Error("failed to save assessment",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction screened",
		"transaction_id", tx.ID,
		"status", assessment.Status,
		"score", assessment.Score,
		"source", assessment.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop gracefully stops the worker and waits for in-flight screenings.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("screening worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
