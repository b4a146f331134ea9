package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/bus"
	"github.com/kestrel-monitoring/kestrel/internal/cache"
	"github.com/kestrel-monitoring/kestrel/internal/detection"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
	"github.com/kestrel-monitoring/kestrel/internal/repository"
	"github.com/kestrel-monitoring/kestrel/internal/review"
	"github.com/kestrel-monitoring/kestrel/internal/risk"
	"github.com/kestrel-monitoring/kestrel/internal/rules"
	"github.com/kestrel-monitoring/kestrel/internal/velocity"
	"github.com/kestrel-monitoring/kestrel/internal/worker"
)

// createTestServer wires a complete server against a throwaway SQLite
// database. The detection client points at an unreachable address so the
// analyzer exercises its local fallback path deterministically.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kestrel-api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c, err := cache.New(domain.CacheConfig{
		Type:         "memory",
		LocalMaxSize: 100,
		LocalTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	b, err := bus.New(domain.EventBusConfig{
		Type:              "channel",
		ChannelBufferSize: 16,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	vel := velocity.NewService(repo, c)

	engine, err := rules.NewEngine(vel.Getter(), 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	// Load a test rule that only fails on very high amounts (>100000)
	// so normal test amounts don't trigger it.
	lower := 0.5
	testRule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "High Value Test Rule",
		Expression: "amount > 100000.0 ? 1.0 : 0.0",
		Bands: []domain.RuleBand{
			{LowerLimit: &lower, SubRuleRef: domain.RuleOutcomeFail, Reason: "High value transfer"},
		},
		Weight:  1.0,
		Enabled: true,
	}
	if err := engine.LoadRule(testRule); err != nil {
		t.Fatalf("failed to load test rule: %v", err)
	}

	detector := detection.NewService(engine, rules.DefaultOptions(), vel, repo, 3600)

	store := notify.New(domain.AlerterFunc(func(domain.Alert) {}), b)

	client := detection.NewClient(domain.DetectionConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	})

	analyzer := risk.New(client, store, risk.StaticScoreProvider(0.85))
	fraudRev := review.NewFraudReviewer(store)
	suspectRev := review.NewSuspiciousReviewer(store, client, repo)
	suspectRev.SetCallbackDelay(10 * time.Millisecond)

	return NewServer(cfg, repo, c, b, engine, detector, analyzer, store, fraudRev, suspectRev, "test-v1")
}

func seedTransaction(t *testing.T, server *Server, id string, amount float64) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		ID:        id,
		Amount:    amount,
		Currency:  "INR",
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Status:    domain.TxStatusCompleted,
		Payer:     domain.Party{ID: "payer-1", Name: "Payer 1"},
		Payee:     domain.Party{ID: "payee-1", Name: "Payee 1"},
		Channel:   domain.ChannelWeb,
		Country:   "IN",
		IPCountry: "IN",
		CreatedAt: time.Now().UTC(),
	}
	if err := server.Handler().repo.SaveTransaction(t.Context(), tx); err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return tx
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func getJSON(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestDetectFraudEndpoint(t *testing.T) {
	server := createTestServer(t)

	detectReq := func(id string, amount float64) domain.DetectionRequest {
		return domain.DetectionRequest{
			TransactionID: id,
			PayerID:       "payer-1",
			Amount:        amount,
			Channel:       domain.ChannelWeb,
			Country:       "IN",
			IPCountry:     "IN",
			Timestamp:     "2025-03-10T12:00:00Z",
		}
	}

	t.Run("CleanTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/detect-fraud", detectReq("tx-clean", 500))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.DetectionResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Status != domain.StatusComplete {
			t.Errorf("expected status Complete, got %s", resp.Status)
		}
		if resp.IsFraudPredicted {
			t.Error("expected clean transaction not to be flagged")
		}
	})

	t.Run("HighValueFlagged", func(t *testing.T) {
		// 150000 trips the built-in amount check (0.3) plus the CEL
		// test rule (1.0), well past the fraud cutoff.
		rr := postJSON(t, server, "/api/detect-fraud", detectReq("tx-hot", 150000))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.DetectionResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Status != domain.StatusFraud {
			t.Errorf("expected status Fraud, got %s", resp.Status)
		}
		if !resp.IsFraudPredicted {
			t.Error("expected is_fraud_predicted true")
		}
		if resp.FraudScore < 0.7 {
			t.Errorf("expected fraud score >= 0.7, got %.2f", resp.FraudScore)
		}
	})

	t.Run("SuspiciousUnusualHours", func(t *testing.T) {
		// High amount (0.3) plus unusual hours (0.2) lands exactly in
		// the suspicious band.
		req := detectReq("tx-night", 50000)
		req.Timestamp = "2025-03-10T23:30:00Z"
		rr := postJSON(t, server, "/api/detect-fraud", req)

		var resp domain.DetectionResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Status != domain.StatusSuspicious {
			t.Errorf("expected status Suspicious, got %s", resp.Status)
		}
		if resp.PopupMessage == "" {
			t.Error("expected popup message for suspicious transaction")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/detect-fraud", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingTransactionID", func(t *testing.T) {
		rr := postJSON(t, server, "/api/detect-fraud", detectReq("", 500))

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		rr := postJSON(t, server, "/api/detect-fraud", detectReq("tx-neg", -5))

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/api/detect-fraud", detectReq("tx-hdr", 500))

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestConfirmTransactionEndpoint(t *testing.T) {
	server := createTestServer(t)
	seedTransaction(t, server, "tx-confirm", 50000)

	t.Run("Confirm", func(t *testing.T) {
		rr := postJSON(t, server, "/api/confirm-transaction", ConfirmTransactionRequest{
			TransactionID: "tx-confirm",
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ConfirmationResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if !resp.UserVerified {
			t.Error("expected user_verified true")
		}
		if resp.TransactionID != "tx-confirm" {
			t.Errorf("expected transaction id tx-confirm, got %s", resp.TransactionID)
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		rr := postJSON(t, server, "/api/confirm-transaction", ConfirmTransactionRequest{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestTransactionEndpoints(t *testing.T) {
	server := createTestServer(t)
	seedTransaction(t, server, "tx-001", 1000)
	seedTransaction(t, server, "tx-002", 2500)

	t.Run("List", func(t *testing.T) {
		rr := getJSON(t, server, "/api/transactions")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Transactions []*domain.Transaction `json:"transactions"`
			Count        int                   `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 2 {
			t.Errorf("expected 2 transactions, got %d", resp.Count)
		}
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		rr := getJSON(t, server, "/api/transactions?limit=abc")

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		rr := getJSON(t, server, "/api/transactions/tx-001")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var tx domain.Transaction
		json.Unmarshal(rr.Body.Bytes(), &tx)

		if tx.ID != "tx-001" {
			t.Errorf("expected tx-001, got %s", tx.ID)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		rr := getJSON(t, server, "/api/transactions/missing")

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		rr := getJSON(t, server, "/api/stats")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var stats domain.TransactionStats
		json.Unmarshal(rr.Body.Bytes(), &stats)

		if stats.TotalTransactions != 2 {
			t.Errorf("expected 2 total transactions, got %d", stats.TotalTransactions)
		}
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	server := createTestServer(t)
	seedTransaction(t, server, "tx-analyze", 5000)

	t.Run("FallbackAnalysis", func(t *testing.T) {
		// The detection client is unreachable, so the analyzer runs its
		// local heuristics with the static 0.85 score.
		rr := postJSON(t, server, "/api/transactions/tx-analyze/analyze", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var a domain.Assessment
		json.Unmarshal(rr.Body.Bytes(), &a)

		if !a.IsFraudulent {
			t.Error("expected fraudulent assessment at score 0.85")
		}
		if a.Source != domain.SourceLocal {
			t.Errorf("expected source local, got %s", a.Source)
		}
		if a.Score != 0.85 {
			t.Errorf("expected score 0.85, got %.2f", a.Score)
		}

		// A fraudulent, non-suspicious assessment raises a notification.
		nr := getJSON(t, server, "/api/notifications")
		var list struct {
			Count int `json:"count"`
		}
		json.Unmarshal(nr.Body.Bytes(), &list)
		if list.Count != 1 {
			t.Errorf("expected 1 notification, got %d", list.Count)
		}
	})

	t.Run("CachedRepeatAnalysis", func(t *testing.T) {
		seedTransaction(t, server, "tx-analyze-again", 7500)

		rr := postJSON(t, server, "/api/transactions/tx-analyze-again/analyze", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var first domain.Assessment
		json.Unmarshal(rr.Body.Bytes(), &first)

		countAfterFirst := len(server.Handler().store.Notifications())

		// A repeat view within the cache TTL serves the stored verdict
		// instead of re-running the analyzer.
		rr = postJSON(t, server, "/api/transactions/tx-analyze-again/analyze", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var second domain.Assessment
		json.Unmarshal(rr.Body.Bytes(), &second)

		if second.ID != first.ID {
			t.Errorf("expected cached assessment %s on repeat analyze, got %s", first.ID, second.ID)
		}
		if got := len(server.Handler().store.Notifications()); got != countAfterFirst {
			t.Errorf("expected repeat analyze not to raise a notification, got %d -> %d", countAfterFirst, got)
		}
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/transactions/missing/analyze", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestScreenEndpoint(t *testing.T) {
	server := createTestServer(t)
	seedTransaction(t, server, "tx-screen-api", 12000)

	t.Run("QueuesScreenRequest", func(t *testing.T) {
		received := make(chan []byte, 1)
		sub, err := server.Handler().bus.Subscribe(t.Context(), domain.TopicTransactionScreen, func(ctx context.Context, msg *domain.Message) error {
			received <- msg.Payload
			return nil
		})
		if err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}
		defer sub.Unsubscribe()

		rr := postJSON(t, server, "/api/transactions/tx-screen-api/screen", nil)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		select {
		case payload := <-received:
			var req worker.ScreenRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				t.Fatalf("failed to parse screen request: %v", err)
			}
			if req.TransactionID != "tx-screen-api" {
				t.Errorf("expected transaction tx-screen-api, got %s", req.TransactionID)
			}
		case <-time.After(time.Second):
			t.Fatal("no screen request published within 1s")
		}
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/transactions/missing/screen", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestDecisionEndpoint(t *testing.T) {
	server := createTestServer(t)
	seedTransaction(t, server, "tx-suspect", 150000)

	t.Run("MarkAsFraud", func(t *testing.T) {
		rr := postJSON(t, server, "/api/transactions/tx-suspect/decision", DecisionRequest{
			Action: review.DecisionFraud,
			Score:  0.6,
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var outcome review.Outcome
		json.Unmarshal(rr.Body.Bytes(), &outcome)

		if outcome.Action != review.DecisionFraud {
			t.Errorf("expected action fraud, got %s", outcome.Action)
		}

		// The flagged copy is written back to the dataset.
		gr := getJSON(t, server, "/api/transactions/tx-suspect")
		var tx domain.Transaction
		json.Unmarshal(gr.Body.Bytes(), &tx)

		if !tx.IsFraudReported {
			t.Error("expected is_fraud_reported true after fraud decision")
		}

		// And a manual-fraud notification exists.
		nr := getJSON(t, server, "/api/notifications")
		var list struct {
			Notifications []domain.FraudNotification `json:"notifications"`
		}
		json.Unmarshal(nr.Body.Bytes(), &list)

		if len(list.Notifications) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(list.Notifications))
		}
		if list.Notifications[0].Title != "Transaction Marked as Fraud" {
			t.Errorf("unexpected notification title: %s", list.Notifications[0].Title)
		}
	})

	t.Run("ConfirmLegitimate", func(t *testing.T) {
		seedTransaction(t, server, "tx-legit", 120000)

		rr := postJSON(t, server, "/api/transactions/tx-legit/decision", DecisionRequest{
			Action: review.DecisionLegitimate,
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var outcome review.Outcome
		json.Unmarshal(rr.Body.Bytes(), &outcome)

		if outcome.Confirmation == nil {
			t.Fatal("expected confirmation in outcome")
		}
		if !outcome.Confirmation.UserVerified {
			t.Error("expected user_verified true")
		}
	})

	t.Run("UnknownAction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/transactions/tx-suspect/decision", map[string]string{
			"action": "escalate",
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/transactions/missing/decision", DecisionRequest{
			Action: review.DecisionFraud,
		})

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestNotificationEndpoints(t *testing.T) {
	server := createTestServer(t)

	// Raise two notifications via manual fraud decisions.
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("tx-notif-%d", i)
		seedTransaction(t, server, id, 150000)
		rr := postJSON(t, server, "/api/transactions/"+id+"/decision", DecisionRequest{
			Action: review.DecisionFraud,
			Score:  0.6,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("failed to raise notification: %d %s", rr.Code, rr.Body.String())
		}
	}

	var notifID string

	t.Run("List", func(t *testing.T) {
		rr := getJSON(t, server, "/api/notifications")

		var resp struct {
			Notifications []domain.FraudNotification `json:"notifications"`
			Count         int                        `json:"count"`
			UnreadCount   int                        `json:"unreadCount"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 2 {
			t.Fatalf("expected 2 notifications, got %d", resp.Count)
		}
		if resp.UnreadCount != 2 {
			t.Errorf("expected 2 unread, got %d", resp.UnreadCount)
		}
		notifID = resp.Notifications[0].ID
	})

	t.Run("MarkRead", func(t *testing.T) {
		rr := postJSON(t, server, "/api/notifications/"+notifID+"/read", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			UnreadCount int `json:"unreadCount"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.UnreadCount != 1 {
			t.Errorf("expected 1 unread after read, got %d", resp.UnreadCount)
		}
	})

	t.Run("MarkReadUnknown", func(t *testing.T) {
		rr := postJSON(t, server, "/api/notifications/missing/read", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Review", func(t *testing.T) {
		rr := postJSON(t, server, "/api/notifications/"+notifID+"/review", ReviewNotificationRequest{
			Confirm: true,
			Notes:   "verified with issuer",
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var n domain.FraudNotification
		json.Unmarshal(rr.Body.Bytes(), &n)

		if !n.Reviewed {
			t.Error("expected notification to be reviewed")
		}
		if n.ReviewedBy != "Engineer" {
			t.Errorf("expected default reviewer Engineer, got %s", n.ReviewedBy)
		}
	})

	t.Run("UnreviewedFilter", func(t *testing.T) {
		rr := getJSON(t, server, "/api/notifications?unreviewed=true")

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 1 {
			t.Errorf("expected 1 unreviewed notification, got %d", resp.Count)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		rr := getJSON(t, server, "/api/rules")

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		rr := getJSON(t, server, "/api/rules/test-rule-001")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		rr := getJSON(t, server, "/api/rules/missing")

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		rr := postJSON(t, server, "/api/rules", CreateRuleRequest{
			ID:         "velocity-rule",
			Name:       "Velocity Rule",
			Expression: "velocity_count > 10 ? 0.8 : 0.0",
			Weight:     0.5,
			Enabled:    true,
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = postJSON(t, server, "/api/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 1 {
			t.Errorf("expected 1 persisted rule after reload, got %d", resp.Count)
		}
	})

	t.Run("CreateInvalidExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/api/rules", CreateRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad Rule",
			Expression: "amount >>> nonsense",
			Weight:     1.0,
			Enabled:    true,
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateMissingFields", func(t *testing.T) {
		rr := postJSON(t, server, "/api/rules", CreateRuleRequest{ID: "only-id"})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := getJSON(t, server, "/health")

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		rr := getJSON(t, server, "/ready")

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight should not reach the handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Errorf("expected origin echoed back, got %s", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
