package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptforge/tally/internal/domain"
	"github.com/promptforge/tally/internal/httpserver"
	"github.com/promptforge/tally/internal/ledger/memory"
)

func newTestHandler(t *testing.T) *httpserver.Handler {
	t.Helper()
	ctx := context.Background()

	rateCards := domain.NewInMemoryRateCardCatalog()
	zero := domain.MustDecimal("0")
	require.NoError(t, rateCards.Register(ctx, domain.RateCard{
		Model:           "gpt-4o",
		InputUnitCost:   domain.MustDecimal("0.00001"),
		OutputUnitCost:  domain.MustDecimal("0.00002"),
		Currency:        "USD",
		InputMarginPct:  &zero,
		OutputMarginPct: &zero,
	}))

	plans := domain.NewInMemoryPlanCatalog()
	coupons := domain.NewInMemoryCouponCatalog()
	require.NoError(t, coupons.Register(ctx, domain.Coupon{
		Code:      "DEAD",
		Type:      domain.CouponPercentage,
		Value:     domain.MustDecimal("10"),
		Scope:     domain.ScopeGlobal,
		Active:    true,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	promos := domain.NewInMemoryPromotionCatalog()

	ledger := domain.NewLedger(memory.NewStore())
	require.NoError(t, ledger.Provision(ctx, "acme", "starter", 100, time.Now().UTC()))

	return httpserver.NewHandler(
		domain.NewCostCalculator(rateCards),
		ledger,
		domain.NewTopUpEngine(ledger, plans, promos, coupons, domain.NewDiscountEngine(coupons), 10_000),
		domain.NewSubscriptionEngine(plans),
		domain.NewNotifierPolicy(ledger, promos, 0.75, 1),
	)
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	h := newTestHandler(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/executions/cost", h.HandleExecutionCost)
	mux.HandleFunc("POST /v1/usage/increment", h.HandleUsageIncrement)
	mux.HandleFunc("POST /v1/purchases/topup/quote", h.HandleTopUpQuote)
	mux.HandleFunc("POST /v1/subscriptions/quote", h.HandleSubscriptionQuote)
	mux.HandleFunc("GET /v1/usage/{tenant}/notify-check", h.HandleNotifyCheck)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleExecutionCost(t *testing.T) {
	mux := newTestMux(t)

	w := postJSON(t, mux, "/v1/executions/cost", map[string]any{
		"model":       "gpt-4o",
		"inputUnits":  1_000_000,
		"outputUnits": 500_000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Cost     string `json:"cost"`
		Currency string `json:"currency"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "20.00", resp.Cost)
	require.Equal(t, "USD", resp.Currency)
}

func TestHandleExecutionCost_Errors(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantKind   string
	}{
		{
			name:       "unknown model",
			body:       map[string]any{"model": "no-such", "inputUnits": 1},
			wantStatus: http.StatusNotFound,
			wantKind:   "unknown_model",
		},
		{
			name:       "negative units",
			body:       map[string]any{"model": "gpt-4o", "inputUnits": -5},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_units",
		},
		{
			name:       "missing model",
			body:       map[string]any{"inputUnits": 1},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, mux, "/v1/executions/cost", tt.body)
			require.Equal(t, tt.wantStatus, w.Code)

			var resp struct {
				ErrorKind string `json:"error_kind"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Equal(t, tt.wantKind, resp.ErrorKind)
		})
	}
}

func TestHandleUsageIncrement(t *testing.T) {
	mux := newTestMux(t)

	w := postJSON(t, mux, "/v1/usage/increment", map[string]any{
		"tenantId": "acme",
		"units":    130,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Consumed     int64 `json:"consumed"`
		OverageUnits int64 `json:"overageUnits"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, int64(130), resp.Consumed)
	require.Equal(t, int64(30), resp.OverageUnits)
}

func TestHandleUsageIncrement_DuplicateIdempotencyKey(t *testing.T) {
	mux := newTestMux(t)

	body := map[string]any{"tenantId": "acme", "units": 10, "idempotencyKey": "evt-1"}
	w := postJSON(t, mux, "/v1/usage/increment", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, mux, "/v1/usage/increment", body)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleTopUpQuote(t *testing.T) {
	mux := newTestMux(t)

	// "starter" is the built-in plan: 0.000015 per unit.
	w := postJSON(t, mux, "/v1/purchases/topup/quote", map[string]any{
		"tenantId":       "acme",
		"requestedUnits": 1_000_000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var quote domain.TopUpQuote
	require.NoError(t, json.NewDecoder(w.Body).Decode(&quote))
	require.Equal(t, int64(1_000_000), quote.RequestedUnits)
	require.Equal(t, int64(1_000_000), quote.FinalUnits)
	require.Equal(t, "15.00", quote.BasePrice.Amount.String())
}

func TestHandleTopUpQuote_Errors(t *testing.T) {
	mux := newTestMux(t)

	w := postJSON(t, mux, "/v1/purchases/topup/quote", map[string]any{
		"tenantId":       "acme",
		"requestedUnits": 100,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, mux, "/v1/purchases/topup/quote", map[string]any{
		"tenantId":       "acme",
		"requestedUnits": 1_000_000,
		"couponCode":     "DEAD",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		ErrorKind string `json:"error_kind"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "coupon_expired", resp.ErrorKind)
}

func TestHandleSubscriptionQuote(t *testing.T) {
	mux := newTestMux(t)

	w := postJSON(t, mux, "/v1/subscriptions/quote", map[string]any{
		"planId":    "starter",
		"seatCount": 15,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var quote domain.SubscriptionQuote
	require.NoError(t, json.NewDecoder(w.Body).Decode(&quote))
	require.Equal(t, "116.10", quote.TotalPrice.Amount.String())

	w = postJSON(t, mux, "/v1/subscriptions/quote", map[string]any{
		"planId":    "starter",
		"seatCount": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleNotifyCheck(t *testing.T) {
	mux := newTestMux(t)

	// Push usage over the 75% threshold first.
	w := postJSON(t, mux, "/v1/usage/increment", map[string]any{
		"tenantId": "acme",
		"units":    80,
	})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/acme/notify-check", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.NotifyDecision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	require.True(t, decision.ShouldNotify)
	require.Equal(t, "usage_threshold", decision.Reason)

	// Second check inside the frequency window is suppressed.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage/acme/notify-check", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	require.False(t, decision.ShouldNotify)

	// Unknown tenant maps to 404.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage/ghost/notify-check", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp["status"])
}
