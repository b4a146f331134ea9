// Package detection provides the client for the external fraud-detection
// endpoint and the embedded service that implements the same wire contract
// locally. Detection failures never crash the dashboard flow: every call
// resolves, degrading to a local best-effort result.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// ErrUnavailable marks a transport-level detection failure (network error,
// non-2xx status, or malformed response body).
var ErrUnavailable = fmt.Errorf("detection service unavailable")

// Client calls the detection endpoints over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a detection client for the configured base URL.
func NewClient(cfg domain.DetectionConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// DetectFraud sends the transaction to the detection endpoint. It always
// returns a usable response: on any transport failure the response is a
// locally-synthesized fallback (status Complete, score 0, fraud_source
// "local") and the returned error is ErrUnavailable so callers that want to
// run their own heuristics can tell the paths apart. The error is a signal,
// never a reason to abort.
func (c *Client) DetectFraud(ctx context.Context, tx *domain.Transaction, recentTransactions int) (*domain.DetectionResponse, error) {
	req := &domain.DetectionRequest{
		TransactionID:      tx.ID,
		PayerID:            tx.Payer.ID,
		Amount:             tx.Amount,
		PaymentMethod:      tx.PaymentMode,
		Channel:            tx.Channel,
		Country:            tx.Country,
		IPCountry:          tx.IPCountry,
		RecentTransactions: recentTransactions,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}

	var resp domain.DetectionResponse
	if err := c.post(ctx, "/api/detect-fraud", req, &resp); err != nil {
		slog.Warn("fraud detection call failed, using local fallback",
			"transaction_id", tx.ID,
			"error", err,
		)
		return c.fallbackDetection(tx), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &resp, nil
}

// ConfirmTransaction marks a transaction as verified-legitimate via the
// confirmation endpoint. Policy: never block the user — on failure a
// locally-synthesized confirmation is returned and the degradation is only
// logged, matching the detection path.
func (c *Client) ConfirmTransaction(ctx context.Context, transactionID string) *domain.ConfirmationResponse {
	req := map[string]string{"transaction_id": transactionID}

	var resp domain.ConfirmationResponse
	if err := c.post(ctx, "/api/confirm-transaction", req, &resp); err != nil {
		slog.Warn("transaction confirmation call failed, confirming locally",
			"transaction_id", transactionID,
			"error", err,
		)
		return &domain.ConfirmationResponse{
			Message:       "Transaction confirmed locally (backend unavailable)",
			Status:        domain.StatusComplete,
			TransactionID: transactionID,
			UserVerified:  true,
		}
	}

	return &resp
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// fallbackDetection builds the degraded response used when the detection
// service cannot be reached.
func (c *Client) fallbackDetection(tx *domain.Transaction) *domain.DetectionResponse {
	return &domain.DetectionResponse{
		TransactionID:    tx.ID,
		PayerID:          tx.Payer.ID,
		Amount:           tx.Amount,
		IsFraudPredicted: false,
		FraudSource:      domain.SourceLocal,
		FraudReason:      "API error, using local fallback",
		FraudScore:       0,
		Status:           domain.StatusComplete,
		UserVerified:     false,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}
