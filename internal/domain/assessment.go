package domain

// RiskLevel is the categorical tier derived from a fraud score.
// Alert severities use the same values.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Score thresholds.
const (
	MediumRiskThreshold = 40.0
	FraudThreshold      = 70.0
	MaxFraudScore       = 100.0
)

// RiskLevelFor maps a score onto LOW [0,40), MEDIUM [40,70), HIGH [70,100].
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= FraudThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Valid reports whether r is a known level.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Assessment is the scoring verdict for one candidate transaction.
type Assessment struct {
	Score       float64      `json:"score"`
	RiskLevel   RiskLevel    `json:"riskLevel"`
	Fraudulent  bool         `json:"fraudulent"`
	Reasons     []string     `json:"reasons"`
	RuleResults []RuleResult `json:"ruleResults"`
}
