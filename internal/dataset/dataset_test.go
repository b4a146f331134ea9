package dataset

import (
	"context"
	"testing"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/repository"
)

func TestFormatted(t *testing.T) {
	transactions := Formatted()
	if len(transactions) != len(Raw()) {
		t.Fatalf("expected %d transactions, got %d", len(Raw()), len(transactions))
	}

	byID := map[string]*domain.Transaction{}
	for _, tx := range transactions {
		byID[tx.ID] = tx
	}

	t.Run("CleanRecord", func(t *testing.T) {
		tx := byID["ANON_0"]
		if tx == nil {
			t.Fatal("ANON_0 missing")
		}
		if tx.Status != domain.TxStatusCompleted {
			t.Errorf("status = %q, want completed", tx.Status)
		}
		if tx.Channel != domain.ChannelWeb {
			t.Errorf("channel = %q, want web", tx.Channel)
		}
		if tx.IsFraudPredicted || tx.FraudScore != 0.15 {
			t.Errorf("fraud fields wrong: predicted=%v score=%v", tx.IsFraudPredicted, tx.FraudScore)
		}
		if tx.Currency != "INR" {
			t.Errorf("currency = %q", tx.Currency)
		}
	})

	t.Run("FraudRecord", func(t *testing.T) {
		tx := byID["ANON_9"]
		if tx == nil {
			t.Fatal("ANON_9 missing")
		}
		if tx.Status != domain.TxStatusFlagged {
			t.Errorf("status = %q, want flagged", tx.Status)
		}
		if !tx.IsFraudPredicted || !tx.IsFraudReported {
			t.Error("fraud flags not set")
		}
		if tx.FraudScore != 0.85 || tx.FraudSource != domain.SourceModel {
			t.Errorf("score=%v source=%q", tx.FraudScore, tx.FraudSource)
		}
	})

	t.Run("ChannelNormalization", func(t *testing.T) {
		// "W" uppercase maps to web too.
		if tx := byID["ANON_8"]; tx.Channel != domain.ChannelWeb {
			t.Errorf("channel = %q, want web", tx.Channel)
		}
		if tx := byID["ANON_1"]; tx.Channel != domain.ChannelMobile {
			t.Errorf("channel = %q, want mobile", tx.Channel)
		}
	})

	t.Run("Timestamps", func(t *testing.T) {
		tx := byID["ANON_9"]
		if tx.Timestamp.Hour() != 2 || tx.Timestamp.Minute() != 14 {
			t.Errorf("timestamp = %v, want 02:14", tx.Timestamp)
		}
	})
}

func TestSeed(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/seed.db"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	n, err := Seed(ctx, repo)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != len(Raw()) {
		t.Errorf("seeded %d, want %d", n, len(Raw()))
	}

	// Idempotent.
	if _, err := Seed(ctx, repo); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}

	stats, err := repo.GetTransactionStats(ctx)
	if err != nil {
		t.Fatalf("GetTransactionStats failed: %v", err)
	}
	if stats.TotalTransactions != len(Raw()) {
		t.Errorf("total = %d, want %d", stats.TotalTransactions, len(Raw()))
	}
	if stats.FraudulentTransactions != 2 {
		t.Errorf("fraudulent = %d, want 2", stats.FraudulentTransactions)
	}
}
