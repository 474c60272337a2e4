package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus tracks whether the user still cares about a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionIgnored SubscriptionStatus = "IGNORED"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionActive || s == SubscriptionIgnored
}

// SubscriptionCycleDays is the assumed billing period.
const SubscriptionCycleDays = 30

// Subscription is a recurring monthly expense mined from history.
type Subscription struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Merchant is the latest raw description; MerchantKey the grouping key.
	Merchant    string `json:"merchant"`
	MerchantKey string `json:"-"`

	AvgAmount    decimal.Decimal    `json:"avgAmount"`
	LastPaidDate Date               `json:"lastPaidDate"`
	NextDueDate  Date               `json:"nextDueDate"`
	Status       SubscriptionStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
}
