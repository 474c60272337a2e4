package rules

import "github.com/opensource-finance/finsight/internal/domain"

// Built-in rule IDs.
const (
	RuleHighAmount     = "high-amount"
	RuleRapidFire      = "rapid-fire"
	RuleGeoAnomaly     = "geo-anomaly"
	RuleUnusedCategory = "new-category"
)

// BuiltinRules returns the default fraud rules in evaluation order.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          RuleHighAmount,
			Name:        "High amount anomaly",
			Description: "Amount is more than three times the user's average",
			Expression:  `avg_amount > 0.0 && avg_multiple > 3.0`,
			Points:      30,
			Reason:      "Amount exceeds 3x user average",
			Sources:     []domain.HistorySource{domain.SourceAverage},
			Enabled:     true,
		},
		{
			ID:          RuleRapidFire,
			Name:        "Rapid-fire activity",
			Description: "Five or more transactions in the preceding ten minutes",
			Expression:  `recent_count >= 5`,
			Points:      25,
			Reason:      "5+ transactions in 10 minutes",
			Sources:     []domain.HistorySource{domain.SourceWindow},
			Enabled:     true,
		},
		{
			ID:          RuleGeoAnomaly,
			Name:        "Geographical anomaly",
			Description: "Different location than the previous transaction less than two hours apart",
			Expression: `location != "" && has_last && last_location != "" &&
				hours_since_last < 2 && location != last_location`,
			Points:  25,
			Reason:  "Different location within 2 hours",
			Sources: []domain.HistorySource{domain.SourceMostRecent},
			Enabled: true,
		},
		{
			ID:          RuleUnusedCategory,
			Name:        "Unusual category",
			Description: "Category the user has never used before",
			Expression:  `category != "" && !(category in known_categories)`,
			Points:      20,
			Reason:      "New category for user",
			Sources:     []domain.HistorySource{domain.SourceCategories},
			Enabled:     true,
		},
	}
}
