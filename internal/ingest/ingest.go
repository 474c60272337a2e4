// Package ingest creates transactions: it scores each one, stores it
// together with any fraud alert and audit entry, then announces it on the bus.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/finsight/internal/audit"
	"github.com/opensource-finance/finsight/internal/bus"
	"github.com/opensource-finance/finsight/internal/domain"
	"github.com/opensource-finance/finsight/internal/query"
	"github.com/opensource-finance/finsight/internal/tadp"
)

var tracer = otel.Tracer("finsight-ingest")

// alertSavepoint scopes the alert insert so a failure there keeps the transaction.
const alertSavepoint = "fraud_alert"

// Service is the transaction ingestion orchestrator.
type Service struct {
	store    domain.Store
	scorer   *tadp.Scorer
	bus      domain.EventBus
	recorder *audit.Recorder
	reader   *query.Service
	loc      *time.Location
	now      func() time.Time
}

// NewService creates an ingestion service. eventBus may be nil.
// Transaction dates sent without an offset are read in loc.
func NewService(store domain.Store, scorer *tadp.Scorer, eventBus domain.EventBus, recorder *audit.Recorder, loc *time.Location) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    store,
		scorer:   scorer,
		bus:      eventBus,
		recorder: recorder,
		reader:   query.NewService(store),
		loc:      loc,
		now:      time.Now,
	}
}

// Validate checks a creation request.
func Validate(req *domain.TransactionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
	}
	if err := domain.Validate(req); err != nil {
		return err
	}
	if req.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	}
	if req.Amount.GreaterThan(domain.MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", domain.ErrInvalidInput, domain.MaxAmount.StringFixed(2))
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most 2 fractional digits", domain.ErrInvalidInput)
	}
	return nil
}

// AlertMessage builds the alert text for the given reasons, truncated
// to MaxAlertMessageLength characters with a trailing "...".
func AlertMessage(reasons []string) string {
	msg := "Fraud detected: " + strings.Join(reasons, ", ")
	if utf8.RuneCountInString(msg) <= domain.MaxAlertMessageLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:domain.MaxAlertMessageLength-3]) + "..."
}

// Create scores and stores a new transaction. The transaction, its alert
// and its audit entry commit together; the bus event follows the commit.
func (s *Service) Create(ctx context.Context, req *domain.TransactionRequest) (*domain.TransactionResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ingest.Create",
		trace.WithAttributes(attribute.String("user.id", req.UserID)),
	)
	defer span.End()

	now := s.now().UTC()
	txDate := now
	if req.TransactionDate != nil {
		txDate = req.TransactionDate.In(s.loc).UTC()
	}

	tx := &domain.Transaction{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Amount:          req.Amount.Round(2),
		Type:            req.Type,
		Category:        req.Category,
		Description:     req.Description,
		Location:        req.Location,
		TransactionDate: txDate,
		CreatedAt:       now,
	}

	var assessment *domain.Assessment
	var alert *domain.FraudAlert

	err := s.store.WithinTx(ctx, func(st domain.Store) error {
		if _, err := st.GetUser(ctx, tx.UserID); err != nil {
			return err
		}

		var err error
		assessment, err = s.scorer.Score(ctx, tx, st)
		if err != nil {
			return fmt.Errorf("failed to score transaction: %w", err)
		}
		score := assessment.Score
		tx.FraudScore = &score
		tx.Fraudulent = assessment.Fraudulent

		if err := st.SaveTransaction(ctx, tx); err != nil {
			return err
		}

		if tadp.ShouldAlert(assessment) {
			alert = s.raiseAlert(ctx, st, tx, assessment, now)
		}

		_, err = s.recorder.Record(ctx, st, tx.UserID,
			domain.ActionCreateTransaction, domain.EntityTransaction, tx.ID,
			audit.TransactionDetails{
				Amount:     tx.Amount,
				Type:       tx.Type,
				Category:   tx.Category,
				Fraudulent: tx.Fraudulent,
			},
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("tx.id", tx.ID),
		attribute.Float64("fraud.score", assessment.Score),
		attribute.Bool("fraud.flagged", tx.Fraudulent),
	)

	slog.InfoContext(ctx, "transaction created",
		"tx_id", tx.ID,
		"user_id", tx.UserID,
		"score", assessment.Score,
		"risk_level", assessment.RiskLevel,
		"fraudulent", tx.Fraudulent,
	)

	s.publish(ctx, tx, alert, span.SpanContext())

	resp := tx.ToResponse()
	resp.RiskLevel = assessment.RiskLevel
	resp.Reasons = assessment.Reasons
	return resp, nil
}

// raiseAlert stores the fraud alert under a savepoint. A failure is logged
// and undone without failing the transaction itself.
func (s *Service) raiseAlert(ctx context.Context, st domain.Store, tx *domain.Transaction, a *domain.Assessment, now time.Time) *domain.FraudAlert {
	alert := &domain.FraudAlert{
		ID:            uuid.New().String(),
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Message:       AlertMessage(a.Reasons),
		Severity:      a.RiskLevel,
		CreatedAt:     now,
	}

	err := st.WithinSavepoint(ctx, alertSavepoint, func(sp domain.Store) error {
		return sp.SaveAlert(ctx, alert)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to save fraud alert",
			"tx_id", tx.ID,
			"user_id", tx.UserID,
			"error", err,
		)
		return nil
	}
	return alert
}

// publish announces the committed transaction. Failures are only logged.
func (s *Service) publish(ctx context.Context, tx *domain.Transaction, alert *domain.FraudAlert, sc trace.SpanContext) {
	if s.bus == nil {
		return
	}

	event := domain.TransactionEvent{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		Type:            tx.Type,
		Amount:          tx.Amount,
		Category:        tx.Category,
		TransactionDate: tx.TransactionDate,
		Fraudulent:      tx.Fraudulent,
	}
	if tx.FraudScore != nil {
		event.FraudScore = *tx.FraudScore
	}
	if sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}

	if err := bus.PublishJSON(ctx, s.bus, domain.TopicTransactionCreated, event); err != nil {
		slog.WarnContext(ctx, "failed to publish transaction event",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	if alert != nil {
		event.AlertID = alert.ID
		if err := bus.PublishJSON(ctx, s.bus, domain.TopicFraudAlert, event); err != nil {
			slog.WarnContext(ctx, "failed to publish fraud alert event",
				"tx_id", tx.ID,
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}
}

// ListByUser returns the user's transactions, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.TransactionResponse, error) {
	return s.reader.ListByUser(ctx, userID)
}

// ListFraudulent returns the user's flagged transactions, newest first.
func (s *Service) ListFraudulent(ctx context.Context, userID string) ([]*domain.TransactionResponse, error) {
	return s.reader.ListFraudulent(ctx, userID)
}
