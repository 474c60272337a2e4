package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// MaxAmount is the largest accepted amount. Every two-place value up to it
// survives a round trip through a float64 column.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction is a single scored money movement owned by a user.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Location    string          `json:"location"`

	// TransactionDate is when the money moved, CreatedAt when we recorded it.
	TransactionDate time.Time `json:"transactionDate"`
	CreatedAt       time.Time `json:"createdAt"`

	Fraudulent bool     `json:"fraudulent"`
	FraudScore *float64 `json:"fraudScore"`
}

// TransactionRequest is the ingestion payload for POST /transactions.
type TransactionRequest struct {
	UserID          string          `json:"userId" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=0,lte=9999999999999.99"`
	Type            TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Category        string          `json:"category" validate:"max=50"`
	Description     string          `json:"description" validate:"max=255"`
	Location        string          `json:"location" validate:"max=100"`
	TransactionDate *Instant        `json:"transactionDate,omitempty"`
}

// Transaction statuses reported to API clients.
const (
	StatusFlagged   = "FLAGGED"
	StatusCompleted = "COMPLETED"
)

// TransactionResponse is the API view of a stored transaction.
type TransactionResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Location        string          `json:"location"`
	TransactionDate time.Time       `json:"transactionDate"`
	CreatedAt       time.Time       `json:"createdAt"`
	Fraudulent      bool            `json:"fraudulent"`
	FraudScore      *float64        `json:"fraudScore"`
	RiskLevel       RiskLevel       `json:"riskLevel,omitempty"`
	Status          string          `json:"status"`
	Reasons         []string        `json:"reasons,omitempty"`
}

// ToResponse converts a Transaction to its API view.
// The risk level is derived from the stored score; unscored transactions have none.
func (t *Transaction) ToResponse() *TransactionResponse {
	status := StatusCompleted
	if t.Fraudulent {
		status = StatusFlagged
	}

	resp := &TransactionResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Amount:          t.Amount,
		Type:            t.Type,
		Category:        t.Category,
		Description:     t.Description,
		Location:        t.Location,
		TransactionDate: t.TransactionDate,
		CreatedAt:       t.CreatedAt,
		Fraudulent:      t.Fraudulent,
		FraudScore:      t.FraudScore,
		Status:          status,
	}
	if t.FraudScore != nil {
		resp.RiskLevel = RiskLevelFor(*t.FraudScore)
	}
	return resp
}

// ToResponses converts a slice of transactions, preserving order.
func ToResponses(txs []*Transaction) []*TransactionResponse {
	out := make([]*TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ToResponse())
	}
	return out
}
