package risk

import (
	"math/rand/v2"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// ScoreProvider produces a fraud-likelihood score for the local fallback
// path. It is the seam where a real scoring model would plug in.
type ScoreProvider interface {
	Score(tx *domain.Transaction) float64
}

// DemoScoreProvider is the demonstration stand-in for a trained model:
// high-value transactions score into the review band, everything else is
// randomly pushed over the fraud cutoff so the dashboard always has
// something to show.
type DemoScoreProvider struct{}

// Score returns 0.6 for amounts above 100000, otherwise 0.75 or 0.85 at
// random.
func (DemoScoreProvider) Score(tx *domain.Transaction) float64 {
	if tx.Amount > 100000 {
		return 0.6
	}
	if rand.Float64() > 0.5 {
		return 0.75
	}
	return 0.85
}

// StaticScoreProvider always returns a fixed score. Used in tests and as a
// kill switch for the demo randomization.
type StaticScoreProvider float64

func (s StaticScoreProvider) Score(*domain.Transaction) float64 { return float64(s) }
