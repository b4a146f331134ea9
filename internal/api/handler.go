package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kestrel-monitoring/kestrel/internal/detection"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
	"github.com/kestrel-monitoring/kestrel/internal/review"
	"github.com/kestrel-monitoring/kestrel/internal/risk"
	"github.com/kestrel-monitoring/kestrel/internal/rules"
	"github.com/kestrel-monitoring/kestrel/internal/worker"
)

// assessmentCacheTTL bounds how long a repeat analyze call serves the
// cached verdict instead of re-running the analyzer.
const assessmentCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	engine     *rules.Engine
	detector   *detection.Service
	analyzer   *risk.Analyzer
	store      *notify.Store
	fraudRev   *review.FraudReviewer
	suspectRev *review.SuspiciousReviewer
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, detector *detection.Service, analyzer *risk.Analyzer, store *notify.Store, fraudRev *review.FraudReviewer, suspectRev *review.SuspiciousReviewer, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		engine:     engine,
		detector:   detector,
		analyzer:   analyzer,
		store:      store,
		fraudRev:   fraudRev,
		suspectRev: suspectRev,
		version:    version,
	}
}

// DetectFraud handles POST /api/detect-fraud: the embedded detection
// endpoint scoring a single transaction against the built-in checks and
// any operator-defined rules.
func (h *Handler) DetectFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.DetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction_id is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	resp := h.detector.Detect(ctx, &req)
	writeJSON(w, http.StatusOK, resp)
}

// ConfirmTransactionRequest is the request body for POST /api/confirm-transaction.
type ConfirmTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

// ConfirmTransaction handles POST /api/confirm-transaction: a human has
// verified a suspicious transaction and it should proceed.
func (h *Handler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction_id is required",
		})
		return
	}

	resp := h.detector.Confirm(ctx, req.TransactionID)
	writeJSON(w, http.StatusOK, resp)
}

// ListTransactions returns the transaction dataset, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	txs, err := h.repo.ListTransactions(ctx, limit)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetStats returns aggregate metrics over the transaction dataset.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.repo.GetTransactionStats(ctx)
	if err != nil {
		slog.Error("failed to compute transaction stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// AnalyzeTransaction handles POST /api/transactions/{id}/analyze: runs the
// risk analyzer on a stored transaction. The analyzer consults the remote
// detection backend and falls back to local scoring when it is unreachable,
// so this endpoint always produces an assessment.
func (h *Handler) AnalyzeTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.cache != nil {
		if cached, err := h.cache.GetAssessment(ctx, txID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	assessment := h.analyzer.Analyze(ctx, tx)

	if err := h.repo.SaveAssessment(ctx, assessment); err != nil {
		slog.Warn("failed to save assessment", "transaction_id", txID, "error", err)
	}
	if h.cache != nil {
		if err := h.cache.SetAssessment(ctx, txID, assessment, assessmentCacheTTL); err != nil {
			slog.Warn("failed to cache assessment", "transaction_id", txID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// ScreenTransaction handles POST /api/transactions/{id}/screen: queues a
// stored transaction for asynchronous screening. The request is acknowledged
// immediately; the screening worker resolves the assessment off the bus.
func (h *Handler) ScreenTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	if _, err := h.repo.GetTransaction(ctx, txID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	payload, err := json.Marshal(worker.ScreenRequest{TransactionID: txID})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode screen request",
		})
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicTransactionScreen, payload); err != nil {
		slog.Error("failed to publish screen request", "transaction_id", txID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue transaction for screening",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":        "Transaction queued for screening",
		"transaction_id": txID,
	})
}

// DecisionRequest is the request body for POST /api/transactions/{id}/decision.
type DecisionRequest struct {
	Action review.Decision `json:"action"`
	Score  float64         `json:"score,omitempty"`
}

// DecideTransaction handles the operator's verdict on a suspicious
// transaction: mark as fraud, confirm legitimate, or request a callback.
func (h *Handler) DecideTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	outcome, err := h.suspectRev.Decide(ctx, tx, req.Score, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrUnknownAction):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "action must be one of: fraud, legitimate, callback",
			})
		case errors.Is(err, review.ErrDecisionInFlight):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "a decision for this transaction is already in progress",
			})
		default:
			slog.Error("decision failed", "transaction_id", txID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "decision failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// ListNotifications returns fraud notifications, newest first.
// Pass ?unreviewed=true to restrict to pending alerts.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var notifications []domain.FraudNotification
	if r.URL.Query().Get("unreviewed") == "true" {
		notifications = h.store.Unreviewed()
	} else {
		notifications = h.store.Notifications()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
		"unreadCount":   h.store.UnreadCount(),
	})
}

// MarkNotificationRead marks a fraud notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notifID := chi.URLParam(r, "id")

	if notifID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "notification id is required",
		})
		return
	}

	if h.store.Get(notifID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "notification not found",
		})
		return
	}

	h.store.MarkAsRead(notifID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "notification marked as read",
		"unreadCount": h.store.UnreadCount(),
	})
}

// ReviewNotificationRequest is the request body for reviewing a fraud alert.
type ReviewNotificationRequest struct {
	Confirm    bool   `json:"confirm"`
	Notes      string `json:"notes,omitempty"`
	ReviewedBy string `json:"reviewedBy,omitempty"`
}

// ReviewNotification records the reviewer's verdict on a fraud alert:
// confirmed as actual fraud or dismissed as a false positive.
func (h *Handler) ReviewNotification(w http.ResponseWriter, r *http.Request) {
	notifID := chi.URLParam(r, "id")

	if notifID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "notification id is required",
		})
		return
	}

	var req ReviewNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.store.Get(notifID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "notification not found",
		})
		return
	}

	h.fraudRev.Review(notifID, req.Confirm, req.ReviewedBy, req.Notes)

	writeJSON(w, http.StatusOK, h.store.Get(notifID))
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	// Return rules currently loaded in the engine (sourced from database)
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	// Check rules loaded in the engine (from database)
	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
