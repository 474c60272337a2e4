// Package worker consumes post-commit events from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/finsight/internal/domain"
)

// SubscriptionDetector re-runs subscription detection for one user.
type SubscriptionDetector interface {
	Detect(ctx context.Context, userID string) ([]*domain.Subscription, error)
}

// Worker refreshes a user's subscriptions whenever one of their
// expenses is committed, and logs raised fraud alerts.
type Worker struct {
	bus      domain.EventBus
	detector SubscriptionDetector

	mu            sync.Mutex
	subscriptions []domain.BusSubscription
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// AutoDetect enables subscription refresh on new expenses.
	AutoDetect bool

	// DetectTimeout bounds one detection run.
	DetectTimeout time.Duration
}

// NewWorker creates a new event worker.
func NewWorker(bus domain.EventBus, detector SubscriptionDetector) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		detector: detector,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the worker's handlers.
func (w *Worker) Start(cfg Config) error {
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 30 * time.Second
	}

	if err := w.subscribe(domain.TopicFraudAlert, w.handleAlert); err != nil {
		return err
	}

	if cfg.AutoDetect && w.detector != nil {
		handler := func(ctx context.Context, msg *domain.Message) error {
			return w.refreshSubscriptions(ctx, msg, cfg.DetectTimeout)
		}
		if err := w.subscribe(domain.TopicTransactionCreated, handler); err != nil {
			return err
		}
	}

	slog.Info("workers started",
		"auto_detect", cfg.AutoDetect,
		"subscriptions", len(w.subscriptions),
	)
	return nil
}

func (w *Worker) subscribe(topic string, handler domain.MessageHandler) error {
	sub, err := w.bus.Subscribe(w.ctx, topic, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()
	return nil
}

func decodeEvent(msg *domain.Message) (*domain.TransactionEvent, error) {
	var event domain.TransactionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse transaction event %s: %w", msg.ID, err)
	}
	return &event, nil
}

// refreshSubscriptions re-runs detection for the owner of a new expense.
func (w *Worker) refreshSubscriptions(ctx context.Context, msg *domain.Message, timeout time.Duration) error {
	event, err := decodeEvent(msg)
	if err != nil {
		w.failed.Add(1)
		return err
	}
	if event.Type != domain.TypeExpense {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	subs, err := w.detector.Detect(ctx, event.UserID)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("subscription refresh for user %s: %w", event.UserID, err)
	}
	w.processed.Add(1)

	slog.Debug("subscriptions refreshed",
		"tx_id", event.TransactionID,
		"user_id", event.UserID,
		"trace_id", event.TraceID,
		"subscriptions", len(subs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) handleAlert(ctx context.Context, msg *domain.Message) error {
	event, err := decodeEvent(msg)
	if err != nil {
		w.failed.Add(1)
		return err
	}
	w.processed.Add(1)

	slog.Warn("fraud alert raised",
		"alert_id", event.AlertID,
		"tx_id", event.TransactionID,
		"user_id", event.UserID,
		"score", event.FraudScore,
		"trace_id", event.TraceID,
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
