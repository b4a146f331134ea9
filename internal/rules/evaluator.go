// Package rules provides fraud rule evaluation: a fixed built-in evaluator
// with static thresholds, and a CEL-based engine for operator-defined rules.
package rules

import (
	"fmt"
	"math"
	"time"
)

// HourWindow is a wrap-around hour-of-day window. A transaction falls inside
// when hour >= Start OR hour <= End (e.g. 23..5 covers late night).
type HourWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Options configures the built-in evaluator. Zero-valued checks are skipped;
// use DefaultOptions as the starting point.
type Options struct {
	AmountThreshold   float64     `json:"amountThreshold"`
	HighRiskCountries []string    `json:"highRiskCountries"`
	UnusualHours      *HourWindow `json:"unusualHours"`
	IPMismatch        bool        `json:"ipMismatch"`
	VelocityCheck     bool        `json:"velocityCheck"`
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		AmountThreshold:   10000,
		HighRiskCountries: []string{"RU", "NG", "UA", "KP"},
		UnusualHours:      &HourWindow{Start: 23, End: 5},
		IPMismatch:        true,
		VelocityCheck:     true,
	}
}

// Input is the transaction slice the built-in evaluator looks at.
type Input struct {
	Amount             float64
	Country            string
	IPCountry          string
	Timestamp          time.Time
	RecentTransactions int
}

// Result is the outcome of a built-in evaluation.
type Result struct {
	IsFraudulent bool     `json:"isFraudulent"`
	Reasons      []string `json:"reasons"`
	Score        float64  `json:"score"`
}

// Rule weights. The score is the plain sum of triggered weights and is not
// capped at 1.0.
const (
	weightAmount     = 0.3
	weightCountry    = 0.4
	weightHours      = 0.2
	weightIPMismatch = 0.5
	weightVelocity   = 0.4
)

// fraudThreshold is the score at or above which a transaction is fraudulent.
const fraudThreshold = 0.5

// Evaluate scores a transaction against the static rule set. Pure and
// deterministic: same input always yields the same result. Reasons are
// appended in rule order (amount, country, hours, IP mismatch, velocity).
func Evaluate(tx Input, opts Options) Result {
	var reasons []string
	score := 0.0

	if opts.AmountThreshold > 0 && tx.Amount > opts.AmountThreshold {
		reasons = append(reasons, fmt.Sprintf("High amount (%v)", tx.Amount))
		score += weightAmount
	}

	for _, country := range opts.HighRiskCountries {
		if tx.Country == country {
			reasons = append(reasons, fmt.Sprintf("High-risk country (%s)", tx.Country))
			score += weightCountry
			break
		}
	}

	if opts.UnusualHours != nil {
		hour := tx.Timestamp.Hour()
		if hour >= opts.UnusualHours.Start || hour <= opts.UnusualHours.End {
			reasons = append(reasons, fmt.Sprintf("Unusual hours (%d:00)", hour))
			score += weightHours
		}
	}

	if opts.IPMismatch && tx.IPCountry != tx.Country {
		reasons = append(reasons, fmt.Sprintf("IP country mismatch (IP: %s, Billing: %s)", tx.IPCountry, tx.Country))
		score += weightIPMismatch
	}

	if opts.VelocityCheck && tx.RecentTransactions > 5 {
		reasons = append(reasons, fmt.Sprintf("High velocity (%d transactions recently)", tx.RecentTransactions))
		score += weightVelocity
	}

	score = math.Round(score*100) / 100

	return Result{
		IsFraudulent: score >= fraudThreshold,
		Reasons:      reasons,
		Score:        score,
	}
}
