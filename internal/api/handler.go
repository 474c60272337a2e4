package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/finsight/internal/alert"
	"github.com/opensource-finance/finsight/internal/audit"
	"github.com/opensource-finance/finsight/internal/auth"
	"github.com/opensource-finance/finsight/internal/dashboard"
	"github.com/opensource-finance/finsight/internal/domain"
	"github.com/opensource-finance/finsight/internal/ingest"
	"github.com/opensource-finance/finsight/internal/query"
	"github.com/opensource-finance/finsight/internal/rules"
	"github.com/opensource-finance/finsight/internal/subscription"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// defaultDueSoonDays is the due-soon window when none is given.
const defaultDueSoonDays = 7

// Dependencies are the collaborators the HTTP layer dispatches to.
type Dependencies struct {
	Store  domain.Store
	Cache  domain.Cache
	Bus    domain.EventBus
	Engine *rules.Engine

	Auth          *auth.Service
	Ingest        *ingest.Service
	Query         *query.Service
	Alerts        *alert.Service
	Subscriptions *subscription.Detector
	Dashboard     *dashboard.Aggregator

	// Location interprets YYYY-MM-DD query parameters.
	Location *time.Location

	// AuthRequired puts every non-auth route behind AuthMiddleware.
	AuthRequired bool
}

// Handler holds dependencies for API handlers.
type Handler struct {
	deps    Dependencies
	loc     *time.Location
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{deps: deps, loc: loc, version: version}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized
// is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON request body", domain.ErrInvalidInput)
	}
	return nil
}

// checkOwner rejects requests for another user's data when a token is present.
func checkOwner(r *http.Request, userID string) error {
	caller := GetUserID(r.Context())
	if caller != "" && userID != "" && caller != userID {
		return fmt.Errorf("%w: token does not belong to user %s", domain.ErrUnauthorized, userID)
	}
	return nil
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if h.deps.Store != nil {
		check("database", func() error { return h.deps.Store.Ping(r.Context()) })
	}
	if h.deps.Cache != nil {
		check("cache", func() error { return h.deps.Cache.Ping(r.Context()) })
	}
	if h.deps.Bus != nil {
		check("eventBus", func() error { return h.deps.Bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.deps.Auth.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.deps.Auth.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTransaction handles POST /transactions.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.deps.Ingest.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SearchTransactions handles GET /transactions.
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	filter, page, err := h.parseSearch(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, filter.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.deps.Query.Search(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListUserTransactions handles GET /transactions/user/{userId}.
func (h *Handler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := h.deps.Ingest.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// ListFraudulentTransactions handles GET /transactions/fraud/{userId}.
func (h *Handler) ListFraudulentTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := h.deps.Ingest.ListFraudulent(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// DashboardSummary handles GET /dashboard/summary.
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := requiredParam(q, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	start, err := h.dateParam(q, "startDate")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := h.dateParam(q, "endDate")
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.deps.Dashboard.Summary(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListAlerts handles GET /fraud/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := requiredParam(q, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	resolved, err := boolParam(q, "resolved")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := domain.AlertFilter{
		UserID:   userID,
		Resolved: resolved,
		Severity: domain.RiskLevel(strings.ToUpper(q.Get("severity"))),
	}

	alerts, err := h.deps.Alerts.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// ResolveAlert handles PUT /fraud/alerts/{id}/resolve.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if GetUserID(r.Context()) != "" {
		a, err := h.deps.Store.GetAlert(r.Context(), id)
		if err == nil {
			err = checkOwner(r, a.UserID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	dto, err := h.deps.Alerts.Resolve(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DetectRequest is the body of POST /subscriptions/detect.
type DetectRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// DetectSubscriptions handles POST /subscriptions/detect.
func (h *Handler) DetectSubscriptions(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := domain.Validate(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	subs, err := h.deps.Subscriptions.Detect(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListSubscriptions handles GET /subscriptions.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := requiredParam(q, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	status := domain.SubscriptionStatus(strings.ToUpper(q.Get("status")))
	subs, err := h.deps.Subscriptions.List(r.Context(), userID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// DueSoonSubscriptions handles GET /subscriptions/due-soon.
func (h *Handler) DueSoonSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := requiredParam(q, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	days, err := intParam(q, "days", defaultDueSoonDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	subs, err := h.deps.Subscriptions.DueSoon(r.Context(), userID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// IgnoreSubscription handles PUT /subscriptions/{id}/ignore.
func (h *Handler) IgnoreSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if GetUserID(r.Context()) != "" {
		existing, err := h.deps.Store.GetSubscription(r.Context(), id)
		if err == nil {
			err = checkOwner(r, existing.UserID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	sub, err := h.deps.Subscriptions.Ignore(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListAudit handles GET /audit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := checkOwner(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := audit.List(r.Context(), h.deps.Store, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ListRules returns the fraud rules loaded in the engine, in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.deps.Engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}
