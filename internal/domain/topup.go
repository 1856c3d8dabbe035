package domain

import (
	"context"
	"fmt"
)

// TopUpEngine quotes token top-up purchases: plan-bracket base price,
// best-promotion bonus units, and coupon discounts. Quotes are ephemeral
// and re-verified at payment confirmation; quoting performs no state change.
type TopUpEngine struct {
	ledger    *Ledger
	plans     PlanCatalog
	promos    PromotionCatalog
	coupons   CouponCatalog
	discounts *DiscountEngine
	minUnits  int64
}

// NewTopUpEngine creates a top-up pricing engine (DI constructor).
// minUnits is the smallest purchasable quantity.
func NewTopUpEngine(
	ledger *Ledger,
	plans PlanCatalog,
	promos PromotionCatalog,
	coupons CouponCatalog,
	discounts *DiscountEngine,
	minUnits int64,
) *TopUpEngine {
	return &TopUpEngine{
		ledger:    ledger,
		plans:     plans,
		promos:    promos,
		coupons:   coupons,
		discounts: discounts,
		minUnits:  minUnits,
	}
}

// Quote prices a top-up of requestedUnits for a tenant. The tenant's plan
// determines the per-unit rate bracket; higher plans buy cheaper units.
// couponCode may be empty. No upper bound is enforced here: payment limits
// live upstream.
func (e *TopUpEngine) Quote(ctx context.Context, tenantID string, requestedUnits int64, couponCode string) (TopUpQuote, error) {
	if requestedUnits < e.minUnits {
		return TopUpQuote{}, fmt.Errorf("%w: requested=%d minimum=%d",
			ErrBelowMinimumPurchase, requestedUnits, e.minUnits)
	}

	snap, err := e.ledger.Read(ctx, tenantID)
	if err != nil {
		return TopUpQuote{}, err
	}

	plan, err := e.plans.Get(ctx, snap.PlanID)
	if err != nil {
		return TopUpQuote{}, err
	}

	basePrice := NewMoney(
		plan.TopUpUnitRate.Mul(NewDecimalFromInt64(requestedUnits)),
		plan.Currency,
	).Round()

	promos, err := e.promos.ListActive(ctx)
	if err != nil {
		return TopUpQuote{}, fmt.Errorf("listing promotions: %w", err)
	}
	promo, bonusUnits, err := bestPromotion(promos, requestedUnits)
	if err != nil {
		return TopUpQuote{}, fmt.Errorf("computing bonus units: %w", err)
	}

	finalPrice := basePrice
	var applied []Applied
	if couponCode != "" {
		finalPrice, applied, err = e.discounts.Apply(ctx, basePrice, DiscountContext{
			Scope:      ScopeAddon,
			CouponCode: couponCode,
		})
		if err != nil {
			return TopUpQuote{}, err
		}
	}

	quote := TopUpQuote{
		TenantID:       tenantID,
		PlanID:         plan.ID,
		RequestedUnits: requestedUnits,
		BonusUnits:     bonusUnits,
		FinalUnits:     requestedUnits + bonusUnits,
		BasePrice:      basePrice,
		FinalPrice:     finalPrice,
		Discounts:      applied,
	}
	if promo != nil {
		quote.Promotion = promo.ID
	}

	return quote, nil
}

// Confirm credits the purchased units to the ledger and burns the coupon
// use, called once payment has settled.
func (e *TopUpEngine) Confirm(ctx context.Context, quote TopUpQuote, couponCode string) (UsageSnapshot, error) {
	snap, err := e.ledger.Credit(ctx, quote.TenantID, quote.FinalUnits)
	if err != nil {
		return UsageSnapshot{}, err
	}

	if couponCode != "" {
		if err := e.coupons.MarkUsed(ctx, couponCode); err != nil {
			return snap, err
		}
	}

	return snap, nil
}

// bestPromotion picks the single eligible promotion with the highest bonus
// percentage; promotions never stack. The bonus is floor(units×pct/100),
// computed in decimal so counts above 2^53 stay exact.
func bestPromotion(promos []Promotion, requestedUnits int64) (*Promotion, int64, error) {
	var best *Promotion
	for i := range promos {
		p := &promos[i]
		if requestedUnits < p.MinPurchaseUnits {
			continue
		}
		if best == nil || p.BonusPct > best.BonusPct {
			best = p
		}
	}
	if best == nil {
		return nil, 0, nil
	}

	bonus, err := NewDecimalFromInt64(requestedUnits).
		Percent(NewDecimalFromFloat64(best.BonusPct)).
		FloorInt64()
	if err != nil {
		return nil, 0, err
	}
	return best, bonus, nil
}
