package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Built-in plan table. Administrators can replace any of these through the
// catalog; the engine itself only reads them.
var (
	PlanFree = Plan{
		ID:            "free",
		Name:          "Free",
		BasePrice:     MustDecimal("0"),
		Currency:      "USD",
		UnitQuota:     100_000,
		TopUpUnitRate: MustDecimal("0.000020"),
		IncludedSeats: 1,
	}

	PlanStarter = Plan{
		ID:              "starter",
		Name:            "Starter",
		BasePrice:       MustDecimal("29"),
		Currency:        "USD",
		UnitQuota:       2_000_000,
		TopUpUnitRate:   MustDecimal("0.000015"),
		IncludedSeats:   5,
		SeatOverageRate: MustDecimal("10"),
		Tiers: []VolumeTier{
			{MinSeats: 2, DiscountPct: MustDecimal("10")},
			{MinSeats: 20, DiscountPct: MustDecimal("20")},
		},
	}

	PlanPro = Plan{
		ID:              "pro",
		Name:            "Pro",
		BasePrice:       MustDecimal("99"),
		Currency:        "USD",
		UnitQuota:       10_000_000,
		TopUpUnitRate:   MustDecimal("0.000010"),
		IncludedSeats:   10,
		SeatOverageRate: MustDecimal("8"),
		Tiers: []VolumeTier{
			{MinSeats: 2, DiscountPct: MustDecimal("10")},
			{MinSeats: 20, DiscountPct: MustDecimal("20")},
			{MinSeats: 50, DiscountPct: MustDecimal("30")},
		},
	}

	PlanEnterprise = Plan{
		ID:              "enterprise",
		Name:            "Enterprise",
		BasePrice:       MustDecimal("499"),
		Currency:        "USD",
		UnitQuota:       100_000_000,
		TopUpUnitRate:   MustDecimal("0.000008"),
		IncludedSeats:   25,
		SeatOverageRate: MustDecimal("6"),
		Tiers: []VolumeTier{
			{MinSeats: 2, DiscountPct: MustDecimal("10")},
			{MinSeats: 50, DiscountPct: MustDecimal("25")},
			{MinSeats: 200, DiscountPct: MustDecimal("35")},
		},
	}
)

// InMemoryPlanCatalog stores plans in memory, preloaded with the built-in
// table.
type InMemoryPlanCatalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemoryPlanCatalog creates a plan catalog seeded with the built-in
// plans.
func NewInMemoryPlanCatalog() *InMemoryPlanCatalog {
	c := &InMemoryPlanCatalog{
		plans: make(map[string]Plan),
	}
	for _, p := range []Plan{PlanFree, PlanStarter, PlanPro, PlanEnterprise} {
		c.plans[p.ID] = p
	}
	return c
}

var _ PlanCatalog = (*InMemoryPlanCatalog)(nil)

// Get retrieves a plan by id.
func (c *InMemoryPlanCatalog) Get(_ context.Context, planID string) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, exists := c.plans[planID]
	if !exists {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	return plan, nil
}

// Register adds or replaces a plan after validating its tier table.
func (c *InMemoryPlanCatalog) Register(_ context.Context, plan Plan) error {
	if plan.ID == "" {
		return errors.New("plan id cannot be empty")
	}
	if plan.Currency == "" {
		plan.Currency = "USD"
	}
	if err := validateTiers(plan.Tiers); err != nil {
		return fmt.Errorf("plan %s: %w", plan.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.plans[plan.ID] = plan
	return nil
}

// validateTiers requires strictly increasing breakpoints so brackets never
// overlap.
func validateTiers(tiers []VolumeTier) error {
	for i, t := range tiers {
		if t.MinSeats < 2 {
			return fmt.Errorf("tier %d: breakpoint must be at least 2 seats", i)
		}
		if i > 0 && t.MinSeats <= tiers[i-1].MinSeats {
			return fmt.Errorf("tier %d: breakpoints must be strictly increasing", i)
		}
	}
	return nil
}
