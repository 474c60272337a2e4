package tadp

import (
	"context"
	"fmt"

	"github.com/opensource-finance/finsight/internal/domain"
)

// RuleEvaluator evaluates the loaded rules for a candidate transaction.
type RuleEvaluator interface {
	EvaluateAll(ctx context.Context, tx *domain.Transaction, view domain.HistoryView) ([]domain.RuleResult, error)
}

// Scorer combines rule evaluation and aggregation into a single
// read-only scoring step.
type Scorer struct {
	rules     RuleEvaluator
	processor *Processor
}

// NewScorer creates a scorer. A nil processor uses NewProcessor.
func NewScorer(rules RuleEvaluator, processor *Processor) *Scorer {
	if processor == nil {
		processor = NewProcessor()
	}
	return &Scorer{rules: rules, processor: processor}
}

// Score assesses tx against the user's history as seen through view.
// It never writes.
func (s *Scorer) Score(ctx context.Context, tx *domain.Transaction, view domain.HistoryView) (*domain.Assessment, error) {
	results, err := s.rules.EvaluateAll(ctx, tx, view)
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	return s.processor.Process(ctx, results), nil
}
