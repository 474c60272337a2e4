// Package tadp implements the Transaction Aggregated Decision Processor.
// TADP sums the points of fired rules into a fraud score and verdict.
package tadp

import (
	"context"
	"log/slog"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Processor aggregates rule results and produces a final decision.
type Processor struct {
	// Score at or above which a transaction is fraudulent.
	FraudThreshold float64

	// Score at or above which the risk level is at least MEDIUM.
	MediumThreshold float64

	// Upper bound of the score.
	MaxScore float64
}

// NewProcessor creates a new TADP processor with default settings.
func NewProcessor() *Processor {
	return &Processor{
		FraudThreshold:  domain.FraudThreshold,
		MediumThreshold: domain.MediumRiskThreshold,
		MaxScore:        domain.MaxFraudScore,
	}
}

// Process turns rule results into an assessment. Reasons follow rule order.
func (p *Processor) Process(ctx context.Context, results []domain.RuleResult) *domain.Assessment {
	agg := p.aggregate(results)

	if agg.Errored > 0 {
		slog.WarnContext(ctx, "rules skipped during scoring", "errored", agg.Errored)
	}

	return &domain.Assessment{
		Score:       agg.Score,
		RiskLevel:   p.riskLevel(agg.Score),
		Fraudulent:  agg.Score >= p.FraudThreshold,
		Reasons:     agg.Reasons,
		RuleResults: results,
	}
}

// AggregateResult holds the aggregated scoring results.
type AggregateResult struct {
	Score          float64
	RulesTriggered int
	Errored        int
	Reasons        []string
}

// aggregate sums the points of fired rules, clamped to [0, MaxScore].
func (p *Processor) aggregate(results []domain.RuleResult) *AggregateResult {
	agg := &AggregateResult{Reasons: []string{}}

	for _, r := range results {
		switch r.Outcome {
		case domain.RuleOutcomeFired:
			agg.RulesTriggered++
			agg.Score += r.Points
			if r.Reason != "" {
				agg.Reasons = append(agg.Reasons, r.Reason)
			}
		case domain.RuleOutcomeError:
			agg.Errored++
		}
	}

	if agg.Score < 0 {
		agg.Score = 0
	}
	if agg.Score > p.MaxScore {
		agg.Score = p.MaxScore
	}

	return agg
}

func (p *Processor) riskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= p.FraudThreshold:
		return domain.RiskHigh
	case score >= p.MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// ShouldAlert reports whether an assessment must raise a fraud alert.
func ShouldAlert(a *domain.Assessment) bool {
	return a.Fraudulent && len(a.Reasons) > 0
}
