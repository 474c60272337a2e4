package domain

// RuleConfig defines a fraud scoring rule.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression to evaluate. Must return bool.
	Expression string `json:"expression"`

	// Points added to the score when the expression is true.
	Points float64 `json:"points"`

	// Reason reported to the user when the rule fires.
	Reason string `json:"reason"`

	// Sources lists the history lookups the expression reads.
	// If any of them failed the rule is skipped with RuleOutcomeError.
	Sources []HistorySource `json:"sources,omitempty"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// HistorySource names one lookup against a user's prior transactions.
type HistorySource string

const (
	SourceAverage    HistorySource = "average"
	SourceWindow     HistorySource = "window"
	SourceMostRecent HistorySource = "most_recent"
	SourceCategories HistorySource = "categories"
)

// RuleResult is the output of a rule evaluation.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	Outcome   string  `json:"outcome"` // ".fired", ".pass", ".err"
	Points    float64 `json:"points"`
	Reason    string  `json:"reason,omitempty"`
	ProcessMs int64   `json:"processMs"`
}

// Predefined rule outcomes
const (
	RuleOutcomeFired = ".fired"
	RuleOutcomePass  = ".pass"
	RuleOutcomeError = ".err"
)
