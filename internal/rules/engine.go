// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/finsight/internal/domain"
	"github.com/opensource-finance/finsight/internal/history"
)

// Engine is the CEL-based rule evaluation engine.
// Rules are kept and reported in load order.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	rules      []*CompiledRule
	maxWorkers int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	// Create CEL environment with the history variables
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("avg_amount", cel.DoubleType),
		cel.Variable("avg_multiple", cel.DoubleType),
		cel.Variable("recent_count", cel.IntType),
		cel.Variable("has_last", cel.BoolType),
		cel.Variable("hours_since_last", cel.IntType),
		cel.Variable("location", cel.StringType),
		cel.Variable("last_location", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("known_categories", cel.ListType(cel.StringType)),
		cel.Variable("tx_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// NewDefaultEngine returns an engine loaded with BuiltinRules.
func NewDefaultEngine(maxWorkers int) (*Engine, error) {
	engine, err := NewEngine(maxWorkers)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return engine, nil
}

// LoadRule compiles a rule and appends it, or replaces a loaded rule with the same ID in place.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	for i, r := range e.rules {
		if r.Config.ID == cfg.ID {
			e.rules[i] = compiled
			return nil
		}
	}
	e.rules = append(e.rules, compiled)

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateAll evaluates every loaded rule for tx against view.
// Results are returned in rule order. Rules run in parallel on a bounded pool.
func (e *Engine) EvaluateAll(ctx context.Context, tx *domain.Transaction, view domain.HistoryView) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	snapshot := history.Gather(ctx, view, tx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	activation := snapshot.Activation(tx)

	// Parallel evaluation using worker pool pattern
	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(r, snapshot, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, snapshot *history.Snapshot, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID:  rule.Config.ID,
		Outcome: domain.RuleOutcomePass,
	}

	for _, src := range rule.Config.Sources {
		if err := snapshot.Err(src); err != nil {
			result.Outcome = domain.RuleOutcomeError
			result.Reason = fmt.Sprintf("history unavailable: %v", err)
			result.ProcessMs = time.Since(start).Milliseconds()
			return result
		}
	}

	// Evaluate CEL expression
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	if fired, ok := out.(types.Bool); ok && bool(fired) {
		result.Outcome = domain.RuleOutcomeFired
		result.Points = rule.Config.Points
		result.Reason = rule.Config.Reason
	}
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// GetLoadedRules returns the currently loaded rule configurations in order.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.rules))
	for _, compiled := range e.rules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
