package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptforge/tally/internal/domain"
)

func newCouponCatalog(t *testing.T) *domain.InMemoryCouponCatalog {
	t.Helper()
	ctx := context.Background()
	catalog := domain.NewInMemoryCouponCatalog()

	coupons := []domain.Coupon{
		{
			Code:   "TEN-OFF",
			Type:   domain.CouponPercentage,
			Value:  domain.MustDecimal("10"),
			Scope:  domain.ScopeGlobal,
			Active: true,
		},
		{
			Code:   "FIVE-BUCKS",
			Type:   domain.CouponFixed,
			Value:  domain.MustDecimal("5"),
			Scope:  domain.ScopeAddon,
			Active: true,
		},
		{
			Code:   "PLAN-ONLY",
			Type:   domain.CouponPercentage,
			Value:  domain.MustDecimal("25"),
			Scope:  domain.ScopePlan,
			Active: true,
		},
		{
			Code:      "EXPIRED",
			Type:      domain.CouponPercentage,
			Value:     domain.MustDecimal("50"),
			Scope:     domain.ScopeGlobal,
			Active:    true,
			ExpiresAt: time.Now().Add(-time.Hour),
		},
		{
			Code:      "EXHAUSTED",
			Type:      domain.CouponPercentage,
			Value:     domain.MustDecimal("50"),
			Scope:     domain.ScopeGlobal,
			Active:    true,
			MaxUses:   3,
			UsedCount: 3,
		},
		{
			Code:   "INACTIVE",
			Type:   domain.CouponPercentage,
			Value:  domain.MustDecimal("50"),
			Scope:  domain.ScopeGlobal,
			Active: false,
		},
	}
	for _, c := range coupons {
		require.NoError(t, catalog.Register(ctx, c))
	}

	return catalog
}

func TestDiscountEngine_ResolveCoupon(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewDiscountEngine(newCouponCatalog(t))

	tests := []struct {
		name      string
		code      string
		scope     domain.CouponScope
		expectErr error
	}{
		{name: "global applies to addon", code: "TEN-OFF", scope: domain.ScopeAddon},
		{name: "global applies to plan", code: "TEN-OFF", scope: domain.ScopePlan},
		{name: "addon coupon for addon purchase", code: "FIVE-BUCKS", scope: domain.ScopeAddon},
		{name: "plan coupon rejected for addon", code: "PLAN-ONLY", scope: domain.ScopeAddon, expectErr: domain.ErrCouponScopeMismatch},
		{name: "addon coupon rejected for plan", code: "FIVE-BUCKS", scope: domain.ScopePlan, expectErr: domain.ErrCouponScopeMismatch},
		{name: "unknown code", code: "NOPE", scope: domain.ScopeAddon, expectErr: domain.ErrCouponNotFound},
		{name: "expired", code: "EXPIRED", scope: domain.ScopeAddon, expectErr: domain.ErrCouponExpired},
		{name: "inactive reported as expired", code: "INACTIVE", scope: domain.ScopeAddon, expectErr: domain.ErrCouponExpired},
		{name: "exhausted", code: "EXHAUSTED", scope: domain.ScopeAddon, expectErr: domain.ErrCouponExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ResolveCoupon(ctx, tt.code, tt.scope)

			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDiscountEngine_Apply_MultiplicativeComposition(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewDiscountEngine(newCouponCatalog(t))

	base := domain.NewMoney(domain.MustDecimal("100"), "USD")
	tiers := []domain.VolumeTier{
		{MinSeats: 2, DiscountPct: domain.MustDecimal("20")},
	}

	// 100 × 0.9 × 0.8 = 72, not 100 × (1 − 0.3) = 70.
	final, applied, err := engine.Apply(ctx, base, domain.DiscountContext{
		Scope:      domain.ScopeAddon,
		CouponCode: "TEN-OFF",
		SeatCount:  5,
		Tiers:      tiers,
	})
	require.NoError(t, err)
	require.Equal(t, "72.00", final.Amount.String())
	require.Len(t, applied, 2)
	require.Equal(t, "coupon_percentage", applied[0].Kind)
	require.Equal(t, "volume_tier", applied[1].Kind)
}

func TestDiscountEngine_Apply_FixedCouponFlooredAtZero(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewDiscountEngine(newCouponCatalog(t))

	base := domain.NewMoney(domain.MustDecimal("3"), "USD")
	final, _, err := engine.Apply(ctx, base, domain.DiscountContext{
		Scope:      domain.ScopeAddon,
		CouponCode: "FIVE-BUCKS",
	})
	require.NoError(t, err)
	require.True(t, final.Amount.IsZero())
}

func TestDiscountEngine_Apply_CouponErrorNotSwallowed(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewDiscountEngine(newCouponCatalog(t))

	base := domain.NewMoney(domain.MustDecimal("100"), "USD")
	_, _, err := engine.Apply(ctx, base, domain.DiscountContext{
		Scope:      domain.ScopeAddon,
		CouponCode: "EXPIRED",
	})
	require.ErrorIs(t, err, domain.ErrCouponExpired)
}

func TestLookupTier(t *testing.T) {
	tiers := []domain.VolumeTier{
		{MinSeats: 2, DiscountPct: domain.MustDecimal("10")},
		{MinSeats: 20, DiscountPct: domain.MustDecimal("20")},
		{MinSeats: 50, DiscountPct: domain.MustDecimal("30")},
	}

	tests := []struct {
		name      string
		seats     int
		expectPct string
		expectOK  bool
	}{
		{name: "below first breakpoint", seats: 1, expectOK: false},
		{name: "exactly first breakpoint", seats: 2, expectPct: "10", expectOK: true},
		{name: "between breakpoints", seats: 15, expectPct: "10", expectOK: true},
		{name: "tie resolves to higher tier", seats: 20, expectPct: "20", expectOK: true},
		{name: "top tier", seats: 500, expectPct: "30", expectOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, ok := domain.LookupTier(tiers, tt.seats)
			require.Equal(t, tt.expectOK, ok)
			if ok {
				require.Equal(t, tt.expectPct, tier.DiscountPct.String())
			}
		})
	}
}

func TestCouponCatalog_MarkUsed(t *testing.T) {
	ctx := context.Background()
	catalog := domain.NewInMemoryCouponCatalog()

	require.NoError(t, catalog.Register(ctx, domain.Coupon{
		Code:    "LIMITED",
		Type:    domain.CouponPercentage,
		Value:   domain.MustDecimal("10"),
		Active:  true,
		MaxUses: 2,
	}))

	require.NoError(t, catalog.MarkUsed(ctx, "LIMITED"))
	require.NoError(t, catalog.MarkUsed(ctx, "LIMITED"))
	require.ErrorIs(t, catalog.MarkUsed(ctx, "LIMITED"), domain.ErrCouponExhausted)
}

func TestCouponCatalog_ClampsPercentage(t *testing.T) {
	ctx := context.Background()
	catalog := domain.NewInMemoryCouponCatalog()

	require.NoError(t, catalog.Register(ctx, domain.Coupon{
		Code:   "OVER",
		Type:   domain.CouponPercentage,
		Value:  domain.MustDecimal("150"),
		Active: true,
	}))

	coupon, err := catalog.Get(ctx, "OVER")
	require.NoError(t, err)
	require.Equal(t, 0, coupon.Value.Cmp(domain.MustDecimal("100")))
}
