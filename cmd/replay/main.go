// FinSight - Personal finance analytics with real-time fraud scoring.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Replay tool for feeding a bank statement export through FinSight.
//
// Usage:
//
//	go run ./cmd/replay -csv statement.csv -user <userId> [-url http://localhost:8080] [-token <jwt>]
//
// Rows are posted to POST /transactions in file order so that each
// transaction is scored against the history built by the rows before it.
// When the statement carries a fraud column the verdicts are compared
// with it and precision and recall are reported.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/finsight/internal/config"
	"github.com/opensource-finance/finsight/internal/domain"
)

// Metrics tracks replay results.
type Metrics struct {
	Flagged   atomic.Int64
	Completed atomic.Int64
	Errors    atomic.Int64

	TruePositives  atomic.Int64
	FalsePositives atomic.Int64
	TrueNegatives  atomic.Int64
	FalseNegatives atomic.Int64

	ProcessingTimeMs atomic.Int64
}

// Record folds one verdict into the metrics.
func (m *Metrics) Record(row StatementRow, resp *domain.TransactionResponse) {
	predicted := resp.Fraudulent
	if predicted {
		m.Flagged.Add(1)
	} else {
		m.Completed.Add(1)
	}
	if !row.Labeled {
		return
	}

	switch {
	case predicted && row.Fraud:
		m.TruePositives.Add(1)
	case predicted && !row.Fraud:
		m.FalsePositives.Add(1)
	case !predicted && !row.Fraud:
		m.TrueNegatives.Add(1)
	default:
		m.FalseNegatives.Add(1)
	}
}

// Precision and recall over labeled rows; zero when undefined.
func (m *Metrics) Precision() float64 {
	tp, fp := m.TruePositives.Load(), m.FalsePositives.Load()
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

func (m *Metrics) Recall() float64 {
	tp, fn := m.TruePositives.Load(), m.FalseNegatives.Load()
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

func main() {
	csvPath := flag.String("csv", "", "Path to the statement CSV")
	baseURL := flag.String("url", "http://localhost:8080", "FinSight base URL")
	userID := flag.String("user", "", "User ID the statement belongs to")
	token := flag.String("token", "", "Bearer token when the server requires auth")
	tz := flag.String("tz", "UTC", "Time zone for YYYY-MM-DD dates")
	workers := flag.Int("workers", 1, "Concurrent requests (1 keeps statement order)")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	slog.SetDefault(config.NewLogger(domain.LoggingConfig{Level: "info", Format: "text"}))

	if *csvPath == "" || *userID == "" {
		fmt.Println("Usage: replay -csv statement.csv -user <userId> [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	loc := domain.AnalyticsConfig{TimeZone: *tz}.Location()

	client := &Client{
		BaseURL: *baseURL,
		Token:   *token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	if err := client.Health(context.Background()); err != nil {
		slog.Error("finsight not reachable", "url", *baseURL, "error", err)
		os.Exit(1)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		slog.Error("failed to open statement", "error", err)
		os.Exit(1)
	}
	rows, err := ReadStatement(file, loc)
	file.Close()
	if err != nil {
		slog.Error("failed to read statement", "error", err)
		os.Exit(1)
	}
	slog.Info("statement loaded", "rows", len(rows), "user_id", *userID)

	start := time.Now()
	metrics := Replay(context.Background(), client, rows, *userID, *workers, *verbose)
	printResults(metrics, len(rows), time.Since(start))
}

// Replay posts every row and collects the verdicts.
func Replay(ctx context.Context, client *Client, rows []StatementRow, userID string, numWorkers int, verbose bool) *Metrics {
	if numWorkers < 1 {
		numWorkers = 1
	}
	metrics := &Metrics{}

	work := make(chan StatementRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				start := time.Now()
				resp, err := client.Create(ctx, row.Request(userID))
				metrics.ProcessingTimeMs.Add(time.Since(start).Milliseconds())

				if err != nil {
					metrics.Errors.Add(1)
					slog.Warn("transaction rejected", "line", row.Line, "error", err)
					continue
				}
				metrics.Record(row, resp)

				if verbose {
					score := 0.0
					if resp.FraudScore != nil {
						score = *resp.FraudScore
					}
					fmt.Printf("%4d %-10s %-30.30s %12s %-9s %5.1f %v\n",
						row.Line, row.Date.Format(domain.DateLayout), row.Description,
						row.Amount.StringFixed(2), resp.Status, score, resp.Reasons)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()

	return metrics
}

// Client talks to the FinSight HTTP API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Create posts one transaction and decodes the scored response.
func (c *Client) Create(ctx context.Context, tx domain.TransactionRequest) (*domain.TransactionResponse, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}

	var result domain.TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, rows int, duration time.Duration) {
	fmt.Println()
	fmt.Println("REPLAY RESULTS")
	fmt.Printf("   Rows:        %d\n", rows)
	fmt.Printf("   Flagged:     %d\n", m.Flagged.Load())
	fmt.Printf("   Completed:   %d\n", m.Completed.Load())
	fmt.Printf("   Errors:      %d\n", m.Errors.Load())

	labeled := m.TruePositives.Load() + m.FalsePositives.Load() + m.TrueNegatives.Load() + m.FalseNegatives.Load()
	if labeled > 0 {
		fmt.Println()
		fmt.Printf("   TP %d  FN %d  FP %d  TN %d\n",
			m.TruePositives.Load(), m.FalseNegatives.Load(), m.FalsePositives.Load(), m.TrueNegatives.Load())
		fmt.Printf("   Precision:   %.4f\n", m.Precision())
		fmt.Printf("   Recall:      %.4f\n", m.Recall())
	}

	fmt.Println()
	fmt.Printf("   Duration:    %v\n", duration.Round(time.Millisecond))
	if processed := m.Flagged.Load() + m.Completed.Load() + m.Errors.Load(); processed > 0 {
		fmt.Printf("   Avg Latency: %.2f ms\n", float64(m.ProcessingTimeMs.Load())/float64(processed))
		fmt.Printf("   Throughput:  %.2f tx/sec\n", float64(processed)/duration.Seconds())
	}
	fmt.Println()
}
