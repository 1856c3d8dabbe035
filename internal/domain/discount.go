package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DiscountContext carries everything needed to resolve discounts for one
// purchase or subscription.
type DiscountContext struct {
	Scope      CouponScope
	CouponCode string       // optional
	SeatCount  int          // optional, for volume-tier lookup
	Tiers      []VolumeTier // sorted by MinSeats ascending
}

// Applied records one discount that was applied to an amount.
type Applied struct {
	Kind   string  `json:"kind"`   // "coupon_percentage", "coupon_fixed", "volume_tier"
	Value  Decimal `json:"value"`  // percentage or fixed amount
	Source string  `json:"source"` // coupon code or tier breakpoint
}

// DiscountEngine resolves coupons and volume tiers and applies them to
// amounts. Read-only with respect to shared state.
type DiscountEngine struct {
	coupons CouponCatalog
	now     func() time.Time
}

// NewDiscountEngine creates a discount engine (DI constructor).
func NewDiscountEngine(coupons CouponCatalog) *DiscountEngine {
	return &DiscountEngine{
		coupons: coupons,
		now:     time.Now,
	}
}

// ResolveCoupon validates a coupon code against the transaction scope.
// Rejections carry a specific reason; the caller decides whether to proceed
// at full price.
func (e *DiscountEngine) ResolveCoupon(ctx context.Context, code string, scope CouponScope) (Coupon, error) {
	coupon, err := e.coupons.Get(ctx, code)
	if err != nil {
		return Coupon{}, err
	}

	if !coupon.Active {
		return Coupon{}, fmt.Errorf("%w: %s", ErrCouponExpired, code)
	}
	if !coupon.ExpiresAt.IsZero() && e.now().After(coupon.ExpiresAt) {
		return Coupon{}, fmt.Errorf("%w: %s", ErrCouponExpired, code)
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return Coupon{}, fmt.Errorf("%w: %s", ErrCouponExhausted, code)
	}
	if coupon.Scope != ScopeGlobal && coupon.Scope != scope {
		return Coupon{}, fmt.Errorf("%w: %s is %s-scoped, purchase is %s",
			ErrCouponScopeMismatch, code, coupon.Scope, scope)
	}

	return coupon, nil
}

// Apply resolves all eligible discounts for the context and applies them to
// base. Coupon first, then the volume tier on the coupon-adjusted amount:
// composition is multiplicative so stacked discounts can never exceed 100%.
// The result is clamped at zero.
func (e *DiscountEngine) Apply(ctx context.Context, base Money, dctx DiscountContext) (Money, []Applied, error) {
	amount := base.Amount
	var applied []Applied

	if dctx.CouponCode != "" {
		coupon, err := e.ResolveCoupon(ctx, dctx.CouponCode, dctx.Scope)
		if err != nil {
			return Money{}, nil, err
		}

		switch coupon.Type {
		case CouponFixed:
			amount = amount.Sub(coupon.Value)
			applied = append(applied, Applied{
				Kind:   "coupon_fixed",
				Value:  coupon.Value,
				Source: coupon.Code,
			})
		default: // percentage
			pct := clampPercent(coupon.Value)
			amount = amount.Sub(amount.Percent(pct))
			applied = append(applied, Applied{
				Kind:   "coupon_percentage",
				Value:  pct,
				Source: coupon.Code,
			})
		}
	}

	if tier, ok := LookupTier(dctx.Tiers, dctx.SeatCount); ok {
		amount = amount.Sub(amount.Percent(tier.DiscountPct))
		applied = append(applied, Applied{
			Kind:   "volume_tier",
			Value:  tier.DiscountPct,
			Source: fmt.Sprintf("tier_%d", tier.MinSeats),
		})
	}

	final := NewMoney(amount, base.Currency).ClampZero().Round()
	return final, applied, nil
}

// LookupTier returns the tier with the highest breakpoint ≤ seatCount.
// Binary search over the sorted breakpoints; a seat count equal to a
// breakpoint qualifies for that tier.
func LookupTier(tiers []VolumeTier, seatCount int) (VolumeTier, bool) {
	if len(tiers) == 0 || seatCount < tiers[0].MinSeats {
		return VolumeTier{}, false
	}

	// First index whose breakpoint exceeds seatCount; the tier before it
	// is the match.
	idx := sort.Search(len(tiers), func(i int) bool {
		return tiers[i].MinSeats > seatCount
	})

	return tiers[idx-1], true
}
