//go:build integration

// Package integration runs end-to-end scenarios against a running FinSight server.
//
// Run with: FINSIGHT_TEST_URL=http://localhost:8080 go test -tags=integration -v ./tests/integration/...
//
// Each test registers its own user, so the suite can run repeatedly against
// the same database. The server must run with FINSIGHT_AUTH_REQUIRED unset
// or true; a token is always sent.
//
// BUILT-IN FRAUD RULES (points add up, capped at 100, fraudulent at >= 70):
//
// | Rule            | Triggers when                                        | Points |
// |-----------------|------------------------------------------------------|--------|
// | high-amount     | amount > 3x the user's average amount                | 30     |
// | rapid-fire      | 5+ transactions in the 10 minutes before this one    | 25     |
// | geo-anomaly     | location differs from the previous one within 2h     | 25     |
// | new-category    | category never used by the user before               | 20     |
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("FINSIGHT_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

type session struct {
	t      *testing.T
	config TestConfig
	userID string
	token  string
}

type transactionResponse struct {
	ID         string   `json:"id"`
	Fraudulent bool     `json:"fraudulent"`
	FraudScore *float64 `json:"fraudScore"`
	RiskLevel  string   `json:"riskLevel"`
	Status     string   `json:"status"`
	Reasons    []string `json:"reasons"`
}

func call(t *testing.T, config TestConfig, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, wantStatus, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, respBody)
		}
	}
}

// newSession registers a fresh user and logs in.
func newSession(t *testing.T) *session {
	t.Helper()
	config := getTestConfig()
	name := fmt.Sprintf("it%d", time.Now().UnixNano())

	var user struct {
		ID string `json:"id"`
	}
	call(t, config, http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "integration-pass",
	}, http.StatusCreated, &user)

	var login struct {
		Token string `json:"token"`
	}
	call(t, config, http.MethodPost, "/auth/login", "", map[string]string{
		"username": name, "password": "integration-pass",
	}, http.StatusOK, &login)

	return &session{t: t, config: config, userID: user.ID, token: login.Token}
}

func (s *session) post(body map[string]any) transactionResponse {
	s.t.Helper()
	body["userId"] = s.userID
	var resp transactionResponse
	call(s.t, s.config, http.MethodPost, "/transactions", s.token, body, http.StatusCreated, &resp)
	return resp
}

// ============================================================================
// SCENARIO: First transaction of a new user
// ============================================================================

func TestFirstTransaction_NotFlagged(t *testing.T) {
	/*
	   A new user's first purchase only trips new-category (20 points),
	   well under the fraud threshold.
	*/
	s := newSession(t)

	result := s.post(map[string]any{
		"amount": 42.50, "type": "EXPENSE", "category": "groceries", "location": "London",
	})

	if result.Fraudulent || result.Status != "COMPLETED" {
		t.Errorf("Expected COMPLETED, got %s", result.Status)
	}
	if result.FraudScore == nil || *result.FraudScore != 20 {
		t.Errorf("Expected score 20, got %v", result.FraudScore)
	}
	if result.RiskLevel != "LOW" {
		t.Errorf("Expected LOW risk, got %s", result.RiskLevel)
	}
}

// ============================================================================
// SCENARIO: Large purchase in a new city and category
// ============================================================================

func TestAnomalousPurchase_Flagged(t *testing.T) {
	/*
	   Two 100.00 London grocery purchases, then 1000.00 of electronics in
	   Paris one hour later:
	   - high-amount: 1000 > 3 x 100     → 30
	   - geo-anomaly: Paris != London, 1h → 25
	   - new-category: electronics       → 20
	   Total 75 → FLAGGED, HIGH, one alert raised.
	*/
	s := newSession(t)
	base := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)

	for _, at := range []time.Time{base.Add(-3 * time.Hour), base.Add(-time.Hour)} {
		s.post(map[string]any{
			"amount": 100, "type": "EXPENSE", "category": "groceries",
			"location": "London", "transactionDate": at.Format(time.RFC3339),
		})
	}
	result := s.post(map[string]any{
		"amount": 1000, "type": "EXPENSE", "category": "electronics",
		"location": "Paris", "transactionDate": base.Format(time.RFC3339),
	})

	if !result.Fraudulent || result.Status != "FLAGGED" {
		t.Fatalf("Expected FLAGGED, got %s", result.Status)
	}
	if result.FraudScore == nil || *result.FraudScore != 75 {
		t.Errorf("Expected score 75, got %v", result.FraudScore)
	}
	if len(result.Reasons) != 3 {
		t.Errorf("Expected 3 reasons, got %v", result.Reasons)
	}

	var alerts []struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
		Resolved bool   `json:"resolved"`
	}
	call(t, s.config, http.MethodGet, "/fraud/alerts?userId="+s.userID, s.token, nil, http.StatusOK, &alerts)
	if len(alerts) != 1 || alerts[0].Severity != "HIGH" {
		t.Fatalf("Expected one HIGH alert, got %+v", alerts)
	}

	var resolved struct {
		Resolved bool `json:"resolved"`
	}
	call(t, s.config, http.MethodPut, "/fraud/alerts/"+alerts[0].ID+"/resolve", s.token, nil, http.StatusOK, &resolved)
	if !resolved.Resolved {
		t.Error("Expected alert to be resolved")
	}
}

// ============================================================================
// SCENARIO: Monthly subscription
// ============================================================================

func TestMonthlySubscription_Detected(t *testing.T) {
	/*
	   Three Netflix payments 30 days apart qualify as a subscription:
	   two qualifying gaps within 25-35 days.
	*/
	s := newSession(t)
	first := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		s.post(map[string]any{
			"amount": 15.49, "type": "EXPENSE", "category": "entertainment",
			"description": "NETFLIX.COM", "transactionDate": first.AddDate(0, 0, 30*i).Format(time.RFC3339),
		})
	}

	var subs []struct {
		Merchant    string  `json:"merchant"`
		AvgAmount   float64 `json:"avgAmount"`
		NextDueDate string  `json:"nextDueDate"`
		Status      string  `json:"status"`
	}
	call(t, s.config, http.MethodPost, "/subscriptions/detect", s.token,
		map[string]string{"userId": s.userID}, http.StatusOK, &subs)

	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(subs))
	}
	if subs[0].AvgAmount != 15.49 || subs[0].NextDueDate != "2025-04-10" || subs[0].Status != "ACTIVE" {
		t.Errorf("Unexpected subscription %+v", subs[0])
	}
}

// ============================================================================
// SCENARIO: Dashboard totals
// ============================================================================

func TestDashboard_Totals(t *testing.T) {
	s := newSession(t)
	s.post(map[string]any{"amount": 3000, "type": "INCOME", "category": "salary"})
	s.post(map[string]any{"amount": 120.25, "type": "EXPENSE", "category": "groceries"})

	var summary struct {
		TotalIncome    float64 `json:"totalIncome"`
		TotalExpenses  float64 `json:"totalExpenses"`
		CurrentBalance float64 `json:"currentBalance"`
	}
	call(t, s.config, http.MethodGet, "/dashboard/summary?userId="+s.userID, s.token, nil, http.StatusOK, &summary)

	if summary.TotalIncome != 3000 || summary.TotalExpenses != 120.25 || summary.CurrentBalance != 2879.75 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

// ============================================================================
// SCENARIO: Validation errors
// ============================================================================

func TestInvalidTransaction_Rejected(t *testing.T) {
	s := newSession(t)
	config := s.config

	call(t, config, http.MethodPost, "/transactions", s.token,
		map[string]any{"userId": s.userID, "amount": -1, "type": "EXPENSE"}, http.StatusBadRequest, nil)
	call(t, config, http.MethodPost, "/transactions", s.token,
		map[string]any{"userId": s.userID, "amount": 1.001, "type": "EXPENSE"}, http.StatusBadRequest, nil)
	call(t, config, http.MethodGet, "/transactions?userId="+s.userID+"&sortDir=up", s.token, nil, http.StatusBadRequest, nil)
}
