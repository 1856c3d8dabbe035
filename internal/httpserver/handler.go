package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/promptforge/tally/internal/domain"
	"github.com/promptforge/tally/internal/observability"
)

// Handler handles HTTP requests for the metering and pricing engine.
type Handler struct {
	costCalc      *domain.CostCalculator
	ledger        *domain.Ledger
	topUps        *domain.TopUpEngine
	subscriptions *domain.SubscriptionEngine
	notifier      *domain.NotifierPolicy
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	costCalc *domain.CostCalculator,
	ledger *domain.Ledger,
	topUps *domain.TopUpEngine,
	subscriptions *domain.SubscriptionEngine,
	notifier *domain.NotifierPolicy,
) *Handler {
	return &Handler{
		costCalc:      costCalc,
		ledger:        ledger,
		topUps:        topUps,
		subscriptions: subscriptions,
		notifier:      notifier,
	}
}

type executionCostRequest struct {
	Model       string `json:"model"`
	InputUnits  int64  `json:"inputUnits"`
	OutputUnits int64  `json:"outputUnits"`
}

type executionCostResponse struct {
	Cost     domain.Decimal `json:"cost"`
	Currency string         `json:"currency"`
}

// HandleExecutionCost prices a single model execution.
func (h *Handler) HandleExecutionCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req executionCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("model is required"))
		return
	}

	ctx = observability.WithModel(ctx, req.Model)
	logger := observability.FromContext(ctx)

	cost, err := h.costCalc.Calculate(ctx, req.Model, req.InputUnits, req.OutputUnits)
	if err != nil {
		logger.Warn("execution cost rejected", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	logger.Info("execution cost computed",
		zap.Int64("input_units", req.InputUnits),
		zap.Int64("output_units", req.OutputUnits),
		zap.String("cost", cost.Amount.String()),
	)

	writeJSON(w, http.StatusOK, executionCostResponse{
		Cost:     cost.Amount,
		Currency: cost.Currency,
	})
}

type incrementRequest struct {
	TenantID       string `json:"tenantId"`
	Units          int64  `json:"units"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type incrementResponse struct {
	Consumed     int64 `json:"consumed"`
	OverageUnits int64 `json:"overageUnits"`
}

// HandleUsageIncrement records consumed units for an execution event.
func (h *Handler) HandleUsageIncrement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req incrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("tenantId is required"))
		return
	}

	ctx = observability.WithTenant(ctx, req.TenantID)
	logger := observability.FromContext(ctx)

	result, err := h.ledger.Increment(ctx, req.TenantID, req.Units, req.IdempotencyKey)
	if err != nil {
		logger.Warn("usage increment rejected", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	logger.Info("usage incremented",
		zap.Int64("units", req.Units),
		zap.Int64("consumed", result.Consumed),
		zap.Int64("overage_units", result.OverageUnits),
	)

	writeJSON(w, http.StatusOK, incrementResponse{
		Consumed:     result.Consumed,
		OverageUnits: result.OverageUnits,
	})
}

type topUpQuoteRequest struct {
	TenantID       string `json:"tenantId"`
	RequestedUnits int64  `json:"requestedUnits"`
	CouponCode     string `json:"couponCode,omitempty"`
}

// HandleTopUpQuote prices a token top-up purchase.
func (h *Handler) HandleTopUpQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req topUpQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("tenantId is required"))
		return
	}

	ctx = observability.WithTenant(ctx, req.TenantID)
	logger := observability.FromContext(ctx)

	quote, err := h.topUps.Quote(ctx, req.TenantID, req.RequestedUnits, req.CouponCode)
	if err != nil {
		logger.Warn("top-up quote rejected", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	logger.Info("top-up quoted",
		zap.Int64("requested_units", quote.RequestedUnits),
		zap.Int64("bonus_units", quote.BonusUnits),
		zap.String("final_price", quote.FinalPrice.Amount.String()),
	)

	writeJSON(w, http.StatusOK, quote)
}

type subscriptionQuoteRequest struct {
	PlanID    string `json:"planId"`
	SeatCount int    `json:"seatCount"`
}

// HandleSubscriptionQuote prices a multitenant subscription.
func (h *Handler) HandleSubscriptionQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	var req subscriptionQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("planId is required"))
		return
	}

	quote, err := h.subscriptions.Quote(ctx, req.PlanID, req.SeatCount)
	if err != nil {
		logger.Warn("subscription quote rejected", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	logger.Info("subscription quoted",
		zap.String("plan", quote.PlanID),
		zap.Int("seats", quote.SeatCount),
		zap.String("total_price", quote.TotalPrice.Amount.String()),
	)

	writeJSON(w, http.StatusOK, quote)
}

// HandleNotifyCheck answers whether a usage/promotion warning should surface
// for the tenant right now.
func (h *Handler) HandleNotifyCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := r.PathValue("tenant")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "invalid_path", errors.New("tenant is required"))
		return
	}

	ctx = observability.WithTenant(ctx, tenantID)
	logger := observability.FromContext(ctx)

	decision, err := h.notifier.Decide(ctx, tenantID)
	if err != nil {
		logger.Warn("notify check failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		ErrorKind: kind,
	})
}

// writeDomainError maps domain sentinel errors to HTTP status codes:
// validation 400, not-found 404, coupon rejection 422, duplicate event 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, errorKind(err), err)
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, errorKind(err), err)
	case domain.IsCouponRejection(err):
		writeError(w, http.StatusUnprocessableEntity, errorKind(err), err)
	case errors.Is(err, domain.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, errorKind(err), err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("internal error: %w", err))
	}
}

func errorKind(err error) string {
	for sentinel, kind := range map[error]string{
		domain.ErrInvalidUnits:         "invalid_units",
		domain.ErrBelowMinimumPurchase: "below_minimum_purchase",
		domain.ErrBelowMinimumSeats:    "below_minimum_seats",
		domain.ErrUnknownModel:         "unknown_model",
		domain.ErrUnknownTenant:        "unknown_tenant",
		domain.ErrUnknownPlan:          "unknown_plan",
		domain.ErrCouponNotFound:       "coupon_not_found",
		domain.ErrCouponExpired:        "coupon_expired",
		domain.ErrCouponExhausted:      "coupon_exhausted",
		domain.ErrCouponScopeMismatch:  "coupon_scope_mismatch",
		domain.ErrDuplicateEvent:       "duplicate_event",
	} {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return "internal"
}
