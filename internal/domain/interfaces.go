package domain

import (
	"context"
	"time"
)

// RateCardCatalog maintains per-model rate cards.
type RateCardCatalog interface {
	// Get returns the rate card for a model, ErrUnknownModel when absent.
	Get(ctx context.Context, model string) (RateCard, error)

	// Register adds a rate card. Cards are immutable: registering a model
	// twice returns ErrRateCardExists.
	Register(ctx context.Context, card RateCard) error
}

// CouponCatalog exposes administrator-managed coupons.
type CouponCatalog interface {
	// Get returns the coupon for a code, ErrCouponNotFound when absent.
	Get(ctx context.Context, code string) (Coupon, error)

	// Register adds a coupon.
	Register(ctx context.Context, coupon Coupon) error

	// MarkUsed increments a coupon's used count at transaction
	// confirmation. Returns ErrCouponExhausted when the limit is reached.
	MarkUsed(ctx context.Context, code string) error
}

// PromotionCatalog exposes administrator-managed promotions.
type PromotionCatalog interface {
	// ListActive returns all promotions currently flagged active.
	ListActive(ctx context.Context) ([]Promotion, error)

	// Register adds a promotion.
	Register(ctx context.Context, promo Promotion) error
}

// PlanCatalog exposes the billing plan table.
type PlanCatalog interface {
	// Get returns the plan for an id, ErrUnknownPlan when absent.
	Get(ctx context.Context, planID string) (Plan, error)

	// Register adds or replaces a plan.
	Register(ctx context.Context, plan Plan) error
}

// UsageStore is the persistence backend for per-tenant usage counters.
// Implementations must make Increment and Credit atomic per tenant: the
// consumed counter is linearizable, no update may be lost under concurrent
// calls for the same tenant.
type UsageStore interface {
	// Provision creates the ledger row for a new tenant.
	Provision(ctx context.Context, tenantID, planID string, quota int64, periodStart time.Time) error

	// Increment adds units to raw consumption and returns the updated
	// snapshot. idemKey, when non-empty, deduplicates retried execution
	// events (ErrDuplicateEvent on replay).
	Increment(ctx context.Context, tenantID string, units int64, idemKey string) (UsageSnapshot, error)

	// Credit adds units to the purchased-allowance counter. Raw
	// consumption is untouched so the audit history stays intact.
	Credit(ctx context.Context, tenantID string, units int64) (UsageSnapshot, error)

	// Read returns the current snapshot, ErrUnknownTenant when absent.
	Read(ctx context.Context, tenantID string) (UsageSnapshot, error)

	// ResetPeriod zeroes consumption for a new billing period. The rollover
	// trigger itself lives outside the engine.
	ResetPeriod(ctx context.Context, tenantID string, periodStart time.Time) error
}
