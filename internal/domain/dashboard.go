package domain

import "github.com/shopspring/decimal"

// DashboardSummary is the windowed rollup returned by GET /dashboard/summary.
type DashboardSummary struct {
	TotalIncome              decimal.Decimal            `json:"totalIncome"`
	TotalExpenses            decimal.Decimal            `json:"totalExpenses"`
	CurrentBalance           decimal.Decimal            `json:"currentBalance"`
	TotalFlaggedTransactions int64                      `json:"totalFlaggedTransactions"`
	AverageFraudScore        float64                    `json:"averageFraudScore"`
	SpendingByCategory       map[string]decimal.Decimal `json:"spendingByCategory"`
	FraudByCategory          map[string]int64           `json:"fraudByCategory"`
	SpendingTrends           []TimeSeriesPoint          `json:"spendingTrends"`
}

// TimeSeriesPoint is one day of expense totals.
type TimeSeriesPoint struct {
	Date   Date            `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}
