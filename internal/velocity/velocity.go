// Package velocity tracks per-payer transaction velocity.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// Service counts recent transactions per payer. Counters live in the cache
// for speed; the repository is the fallback source of truth when no counter
// window is active.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Record notes one transaction for the payer inside the window and returns
// the running count.
func (s *Service) Record(ctx context.Context, payerID string, windowSecs int) (int64, error) {
	if payerID == "" {
		return 0, fmt.Errorf("payerID is required")
	}
	if s.cache == nil {
		return 0, nil
	}
	window := time.Duration(windowSecs) * time.Second
	return s.cache.IncrementCounter(ctx, "velocity:"+payerID, window)
}

// Count returns the number of transactions for a payer within the window.
// This is the VelocityGetter signature expected by the rule engine.
func (s *Service) Count(ctx context.Context, payerID string, windowSecs int) (int64, error) {
	if payerID == "" {
		return 0, fmt.Errorf("payerID is required")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	if s.repo != nil {
		count, err := s.repo.CountTransactionsByPayer(ctx, payerID, since)
		if err != nil {
			return 0, fmt.Errorf("failed to count transactions: %w", err)
		}
		return count, nil
	}

	return 0, fmt.Errorf("no data source available")
}

// Getter returns a VelocityGetter function for the rule engine.
func (s *Service) Getter() func(ctx context.Context, payerID string, windowSecs int) (int64, error) {
	return s.Count
}
