package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/kestrel-monitoring/kestrel/internal/cache"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/velocity.db",
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecord(t *testing.T) {
	svc := NewService(nil, cache.NewLRUCache(100))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := svc.Record(ctx, "P1001", 60)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	// Separate payers count independently.
	got, err := svc.Record(ctx, "P2002", 60)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if got != 1 {
		t.Errorf("count = %d, want 1", got)
	}

	if _, err := svc.Record(ctx, "", 60); err == nil {
		t.Error("expected error for empty payerID")
	}
}

func TestCount(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, age := range []time.Duration{time.Minute, 2 * time.Minute, 2 * time.Hour} {
		tx := &domain.Transaction{
			ID:        "TXN-" + string(rune('A'+i)),
			Amount:    100,
			Currency:  "INR",
			Timestamp: now.Add(-age),
			Status:    domain.TxStatusCompleted,
			Payer:     domain.Party{ID: "P1001"},
			Payee:     domain.Party{ID: "M1"},
			Channel:   domain.ChannelWeb,
			CreatedAt: now,
		}
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
	}

	// Only the two transactions inside the 10-minute window count.
	count, err := svc.Count(ctx, "P1001", 600)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestGetterMatchesCount(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)

	getter := svc.Getter()
	count, err := getter(context.Background(), "P-none", 60)
	if err != nil {
		t.Fatalf("getter failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
