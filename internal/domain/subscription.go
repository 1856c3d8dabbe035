package domain

import (
	"context"
	"fmt"
)

// minMultitenantSeats is the smallest seat count a multitenant quote accepts.
const minMultitenantSeats = 2

// SubscriptionEngine quotes multitenant subscription prices with volume-tier
// discounts. Pure and read-only.
type SubscriptionEngine struct {
	plans PlanCatalog
}

// NewSubscriptionEngine creates a subscription pricing engine (DI constructor).
func NewSubscriptionEngine(plans PlanCatalog) *SubscriptionEngine {
	return &SubscriptionEngine{
		plans: plans,
	}
}

// Quote prices a subscription for seatCount seats on the given plan.
func (e *SubscriptionEngine) Quote(ctx context.Context, planID string, seatCount int) (SubscriptionQuote, error) {
	plan, err := e.plans.Get(ctx, planID)
	if err != nil {
		return SubscriptionQuote{}, err
	}

	return QuoteSubscription(plan, seatCount)
}

// QuoteSubscription prices seatCount seats against a plan. Seats within
// IncludedSeats cost nothing beyond the base price; additional seats bill at
// the per-seat overage rate. The volume tier matching the full seat count
// (not just the additional seats) discounts the whole amount.
func QuoteSubscription(plan Plan, seatCount int) (SubscriptionQuote, error) {
	if seatCount < minMultitenantSeats {
		return SubscriptionQuote{}, fmt.Errorf("%w: seats=%d minimum=%d",
			ErrBelowMinimumSeats, seatCount, minMultitenantSeats)
	}

	quote := SubscriptionQuote{
		PlanID:        plan.ID,
		SeatCount:     seatCount,
		IncludedSeats: plan.IncludedSeats,
		BasePrice:     NewMoney(plan.BasePrice, plan.Currency).Round(),
	}

	total := plan.BasePrice

	if seatCount > plan.IncludedSeats {
		quote.AdditionalSeats = seatCount - plan.IncludedSeats
		overage := plan.SeatOverageRate.Mul(NewDecimalFromInt64(int64(quote.AdditionalSeats)))
		quote.SeatOverage = NewMoney(overage, plan.Currency).Round()
		total = total.Add(overage)

		if tier, ok := LookupTier(plan.Tiers, seatCount); ok {
			total = total.Sub(total.Percent(tier.DiscountPct))
			quote.TierDiscountPct = tier.DiscountPct.String()
		}
	}

	quote.TotalPrice = NewMoney(total, plan.Currency).ClampZero().Round()
	return quote, nil
}
