package domain

import "time"

// FraudAlert is raised together with a transaction that scored as fraudulent.
type FraudAlert struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	TransactionID string    `json:"transactionId"`
	Message       string    `json:"message"`
	Severity      RiskLevel `json:"severity"`
	Resolved      bool      `json:"resolved"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AlertFilter narrows an alert listing. Nil or empty fields are ignored.
type AlertFilter struct {
	UserID   string
	Resolved *bool
	Severity RiskLevel
}

// FraudAlertDTO is the API view of an alert with its transaction attached.
type FraudAlertDTO struct {
	FraudAlert
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// MaxAlertMessageLength bounds FraudAlert.Message.
const MaxAlertMessageLength = 255
