// Package query serves filtered, sorted and paginated transaction reads.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Service answers transaction queries for one user at a time.
type Service struct {
	store domain.Store
}

// NewService creates a query service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// NormalizePage applies paging defaults and rejects unknown sort fields.
// Sizes above MaxPageSize are clamped.
func NormalizePage(p domain.PageRequest) (domain.PageRequest, error) {
	if p.Page < 0 {
		return p, fmt.Errorf("%w: page must not be negative", domain.ErrInvalidInput)
	}
	switch {
	case p.Size <= 0:
		p.Size = domain.DefaultPageSize
	case p.Size > domain.MaxPageSize:
		p.Size = domain.MaxPageSize
	}

	if p.SortBy == "" {
		p.SortBy = domain.DefaultSortBy
	}
	if !domain.ValidSortField(p.SortBy) {
		return p, fmt.Errorf("%w: unsupported sortBy %q", domain.ErrInvalidInput, p.SortBy)
	}

	switch strings.ToLower(p.SortDir) {
	case "", domain.SortDesc:
		p.SortDir = domain.SortDesc
	case domain.SortAsc:
		p.SortDir = domain.SortAsc
	default:
		return p, fmt.Errorf("%w: sortDir must be asc or desc", domain.ErrInvalidInput)
	}
	return p, nil
}

// Search returns one page of the user's transactions matching filter.
func (s *Service) Search(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) (*domain.Page[*domain.TransactionResponse], error) {
	if filter.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	// Blank filter values are ignored.
	filter.Type = domain.TransactionType(strings.TrimSpace(string(filter.Type)))
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidInput, filter.Type)
	}
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, fmt.Errorf("%w: startDate is after endDate", domain.ErrInvalidInput)
	}

	page, err := NormalizePage(page)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, filter.UserID); err != nil {
		return nil, err
	}

	txs, total, err := s.store.FindTransactions(ctx, filter, page)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return &domain.Page[*domain.TransactionResponse]{
		Content:       domain.ToResponses(txs),
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}, nil
}

// ListByUser returns every transaction of the user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.TransactionResponse, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.ToResponses(txs), nil
}

// ListFraudulent returns the user's flagged transactions, newest first.
func (s *Service) ListFraudulent(ctx context.Context, userID string) ([]*domain.TransactionResponse, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListFraudulentTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.ToResponses(txs), nil
}
