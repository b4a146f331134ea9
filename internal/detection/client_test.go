package detection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

func testTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          "tx-abc-123",
		Amount:      2500,
		Currency:    "INR",
		Timestamp:   time.Now().UTC(),
		Payer:       domain.Party{ID: "payer-1", Name: "Payer 1"},
		Payee:       domain.Party{ID: "payee-1", Name: "Payee 1"},
		Channel:     domain.ChannelWeb,
		PaymentMode: "mode_10",
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(domain.DetectionConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	})
}

func TestDetectFraudSuccess(t *testing.T) {
	var gotReq domain.DetectionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/detect-fraud" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(domain.DetectionResponse{
			TransactionID:    gotReq.TransactionID,
			IsFraudPredicted: true,
			FraudSource:      domain.SourceModel,
			FraudReason:      "model flagged",
			FraudScore:       0.92,
			Status:           domain.StatusFraud,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.DetectFraud(context.Background(), testTransaction(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReq.TransactionID != "tx-abc-123" {
		t.Errorf("request transaction_id = %q", gotReq.TransactionID)
	}
	if gotReq.PayerID != "payer-1" {
		t.Errorf("request payer_id = %q", gotReq.PayerID)
	}
	if gotReq.RecentTransactions != 3 {
		t.Errorf("request recentTransactions = %d", gotReq.RecentTransactions)
	}

	if !resp.IsFraudPredicted || resp.Status != domain.StatusFraud {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.FraudScore != 0.92 {
		t.Errorf("score = %.2f", resp.FraudScore)
	}
}

func TestDetectFraudTransportFailure(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	resp, err := client.DetectFraud(context.Background(), testTransaction(), 0)

	// Resolves, never rejects: the fallback response must be usable.
	if resp == nil {
		t.Fatal("expected fallback response, got nil")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable signal, got %v", err)
	}

	if resp.Status != domain.StatusComplete {
		t.Errorf("fallback status = %q, want %q", resp.Status, domain.StatusComplete)
	}
	if resp.FraudScore != 0 {
		t.Errorf("fallback score = %.2f, want 0", resp.FraudScore)
	}
	if resp.FraudSource != domain.SourceLocal {
		t.Errorf("fallback source = %q, want %q", resp.FraudSource, domain.SourceLocal)
	}
	if resp.IsFraudPredicted {
		t.Error("fallback must not predict fraud")
	}
}

func TestDetectFraudNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.DetectFraud(context.Background(), testTransaction(), 0)

	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for 500, got %v", err)
	}
	if resp.FraudSource != domain.SourceLocal {
		t.Errorf("expected local fallback on 500, got %q", resp.FraudSource)
	}
}

func TestDetectFraudMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.DetectFraud(context.Background(), testTransaction(), 0)

	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("malformed body should be treated as transport failure, got %v", err)
	}
	if resp.Status != domain.StatusComplete {
		t.Errorf("fallback status = %q", resp.Status)
	}
}

func TestConfirmTransactionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/confirm-transaction" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(domain.ConfirmationResponse{
			Message:       "confirmed",
			Status:        domain.StatusComplete,
			TransactionID: req["transaction_id"],
			UserVerified:  true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp := client.ConfirmTransaction(context.Background(), "tx-42")

	if resp.TransactionID != "tx-42" {
		t.Errorf("transaction_id = %q", resp.TransactionID)
	}
	if !resp.UserVerified {
		t.Error("expected user_verified")
	}
}

func TestConfirmTransactionFallsBackLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	resp := client.ConfirmTransaction(context.Background(), "tx-42")

	if resp == nil {
		t.Fatal("expected local confirmation, got nil")
	}
	if !resp.UserVerified {
		t.Error("local confirmation must set user_verified")
	}
	if resp.Status != domain.StatusComplete {
		t.Errorf("status = %q", resp.Status)
	}
}
