// Package alert lists and resolves fraud alerts.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/finsight/internal/audit"
	"github.com/opensource-finance/finsight/internal/domain"
)

// Service exposes fraud alerts with their transactions attached.
type Service struct {
	store    domain.Store
	recorder *audit.Recorder
}

// NewService creates an alert service.
func NewService(store domain.Store, recorder *audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	return &Service{store: store, recorder: recorder}
}

// List returns the alerts matching filter, newest first.
func (s *Service) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.FraudAlertDTO, error) {
	if filter.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, filter.Severity)
	}
	if _, err := s.store.GetUser(ctx, filter.UserID); err != nil {
		return nil, err
	}

	alerts, err := s.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.FraudAlertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, s.toDTO(ctx, s.store, a))
	}
	return out, nil
}

// Resolve marks an alert resolved and audits it in the same transaction.
func (s *Service) Resolve(ctx context.Context, alertID string) (*domain.FraudAlertDTO, error) {
	var dto *domain.FraudAlertDTO
	err := s.store.WithinTx(ctx, func(st domain.Store) error {
		a, err := st.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		if err := st.ResolveAlert(ctx, alertID); err != nil {
			return err
		}
		a.Resolved = true

		_, err = s.recorder.Record(ctx, st, a.UserID,
			domain.ActionResolveFraudAlert, domain.EntityFraudAlert, a.ID,
			audit.AlertDetails{AlertID: a.ID, Severity: a.Severity},
		)
		if err != nil {
			return err
		}

		dto = s.toDTO(ctx, st, a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "fraud alert resolved",
		"alert_id", alertID,
		"user_id", dto.UserID,
	)
	return dto, nil
}

// toDTO attaches the alert's transaction. A missing transaction leaves it empty.
func (s *Service) toDTO(ctx context.Context, st domain.Store, a *domain.FraudAlert) *domain.FraudAlertDTO {
	dto := &domain.FraudAlertDTO{FraudAlert: *a}
	tx, err := st.GetTransaction(ctx, a.TransactionID)
	if err != nil {
		slog.WarnContext(ctx, "alert transaction unavailable",
			"alert_id", a.ID,
			"tx_id", a.TransactionID,
			"error", err,
		)
		return dto
	}
	dto.Transaction = tx.ToResponse()
	return dto
}
