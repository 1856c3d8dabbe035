package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptforge/tally/internal/domain"
)

func starterPlan() domain.Plan {
	return domain.Plan{
		ID:              "starter",
		Name:            "Starter",
		BasePrice:       domain.MustDecimal("29"),
		Currency:        "USD",
		IncludedSeats:   5,
		SeatOverageRate: domain.MustDecimal("10"),
		Tiers: []domain.VolumeTier{
			{MinSeats: 2, DiscountPct: domain.MustDecimal("10")},
			{MinSeats: 20, DiscountPct: domain.MustDecimal("20")},
		},
	}
}

func TestQuoteSubscription(t *testing.T) {
	tests := []struct {
		name          string
		seatCount     int
		expectedTotal string
		expectErr     error
	}{
		{
			// (29 + 10×10) × 0.9 = 116.1
			name:          "overage seats with first tier",
			seatCount:     15,
			expectedTotal: "116.10",
		},
		{
			// (29 + 20×10) × 0.8 = 183.2; tie resolves to the higher tier.
			name:          "breakpoint tie takes higher tier",
			seatCount:     25,
			expectedTotal: "183.20",
		},
		{
			name:          "within included seats pays base price",
			seatCount:     4,
			expectedTotal: "29.00",
		},
		{
			name:          "exactly included seats pays base price",
			seatCount:     5,
			expectedTotal: "29.00",
		},
		{
			name:      "below multitenant minimum",
			seatCount: 1,
			expectErr: domain.ErrBelowMinimumSeats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := domain.QuoteSubscription(starterPlan(), tt.seatCount)

			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expectedTotal, quote.TotalPrice.Amount.String())
		})
	}
}

func TestQuoteSubscription_Breakdown(t *testing.T) {
	quote, err := domain.QuoteSubscription(starterPlan(), 15)
	require.NoError(t, err)

	require.Equal(t, 15, quote.SeatCount)
	require.Equal(t, 5, quote.IncludedSeats)
	require.Equal(t, 10, quote.AdditionalSeats)
	require.Equal(t, "29.00", quote.BasePrice.Amount.String())
	require.Equal(t, "100.00", quote.SeatOverage.Amount.String())
	require.Equal(t, "10", quote.TierDiscountPct)
}

func TestSubscriptionEngine_Quote_UnknownPlan(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewSubscriptionEngine(domain.NewInMemoryPlanCatalog())

	_, err := engine.Quote(ctx, "no-such-plan", 10)
	require.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestSubscriptionEngine_Quote_BuiltInPlan(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewSubscriptionEngine(domain.NewInMemoryPlanCatalog())

	quote, err := engine.Quote(ctx, "starter", 15)
	require.NoError(t, err)
	require.Equal(t, "116.10", quote.TotalPrice.Amount.String())
}
