package domain

import "time"

// DefaultMarginPct is applied to a rate card side whose margin is unset.
var DefaultMarginPct = MustDecimal("50")

// RateCard holds per-model unit pricing. Costs are in the card's currency per
// single unit; margins are uplift percentages applied on top of raw cost.
// Cards are immutable once registered: historical execution costs must not
// change retroactively.
type RateCard struct {
	Model           string   `json:"model"            yaml:"model"`
	InputUnitCost   Decimal  `json:"input_unit_cost"  yaml:"input_unit_cost"`
	OutputUnitCost  Decimal  `json:"output_unit_cost" yaml:"output_unit_cost"`
	Currency        string   `json:"currency"         yaml:"currency"`
	FXRate          Decimal  `json:"fx_rate"          yaml:"fx_rate"`
	InputMarginPct  *Decimal `json:"input_margin_pct,omitempty"  yaml:"input_margin_pct"`
	OutputMarginPct *Decimal `json:"output_margin_pct,omitempty" yaml:"output_margin_pct"`
}

// CouponType is how a coupon's value is interpreted.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// CouponScope restricts the class of transaction a coupon applies to.
type CouponScope string

const (
	ScopePlan   CouponScope = "plan"
	ScopeAddon  CouponScope = "addon"
	ScopeGlobal CouponScope = "global"
)

// Coupon is administrator-managed reference data. The engine only reads
// active, unexpired instances at evaluation time.
type Coupon struct {
	Code      string      `json:"code"       yaml:"code"`
	Type      CouponType  `json:"type"       yaml:"type"`
	Value     Decimal     `json:"value"      yaml:"value"`
	Scope     CouponScope `json:"scope"      yaml:"scope"`
	MaxUses   int         `json:"max_uses"   yaml:"max_uses"` // 0 = unlimited
	UsedCount int         `json:"used_count" yaml:"used_count"`
	ExpiresAt time.Time   `json:"expires_at" yaml:"expires_at"` // zero = no expiry
	Active    bool        `json:"active"     yaml:"active"`
}

// TriggerMode controls when a promotion may surface a popup.
type TriggerMode string

const (
	TriggerAlways         TriggerMode = "always"
	TriggerUsageThreshold TriggerMode = "usage_threshold"
	TriggerTimeBased      TriggerMode = "time_based"
)

// Promotion grants bonus units on qualifying top-up purchases and optionally
// drives notifier popups.
type Promotion struct {
	ID                  string      `json:"id"                    yaml:"id"`
	Name                string      `json:"name"                  yaml:"name"`
	BonusPct            float64     `json:"bonus_pct"             yaml:"bonus_pct"`
	MinPurchaseUnits    int64       `json:"min_purchase_units"    yaml:"min_purchase_units"`
	Active              bool        `json:"active"                yaml:"active"`
	PopupTrigger        TriggerMode `json:"popup_trigger"         yaml:"popup_trigger"`
	UsageThreshold      float64     `json:"usage_threshold"       yaml:"usage_threshold"`
	PopupFrequencyHours int         `json:"popup_frequency_hours" yaml:"popup_frequency_hours"`
}

// VolumeTier is one discount bracket for multitenant plans. The applicable
// tier for a seat count is the highest breakpoint ≤ seat count.
type VolumeTier struct {
	MinSeats    int     `json:"min_seats"    yaml:"min_seats"`
	DiscountPct Decimal `json:"discount_pct" yaml:"discount_pct"`
}

// Plan is a billing plan: quota bracket, top-up rate bracket, and
// multitenant seat pricing.
type Plan struct {
	ID              string       `json:"id"                yaml:"id"`
	Name            string       `json:"name"              yaml:"name"`
	BasePrice       Decimal      `json:"base_price"        yaml:"base_price"` // monthly, in Currency
	Currency        string       `json:"currency"          yaml:"currency"`
	UnitQuota       int64        `json:"unit_quota"        yaml:"unit_quota"`
	TopUpUnitRate   Decimal      `json:"topup_unit_rate"   yaml:"topup_unit_rate"` // price per purchased unit
	IncludedSeats   int          `json:"included_seats"    yaml:"included_seats"`
	SeatOverageRate Decimal      `json:"seat_overage_rate" yaml:"seat_overage_rate"` // per additional seat
	Tiers           []VolumeTier `json:"tiers,omitempty"   yaml:"tiers"`
}

// UsageSnapshot is a point-in-time read of a tenant's ledger.
type UsageSnapshot struct {
	TenantID    string    `json:"tenant_id"`
	PlanID      string    `json:"plan_id"`
	Consumed    int64     `json:"consumed"`  // monotonic raw consumption
	Purchased   int64     `json:"purchased"` // top-up allowance credits
	Quota       int64     `json:"quota"`     // plan-included units
	PeriodStart time.Time `json:"period_start"`
}

// EffectiveQuota is the plan quota plus purchased allowance.
func (s UsageSnapshot) EffectiveQuota() int64 {
	return s.Quota + s.Purchased
}

// Overage is consumption beyond the effective quota, never negative.
func (s UsageSnapshot) Overage() int64 {
	over := s.Consumed - s.EffectiveQuota()
	if over < 0 {
		return 0
	}
	return over
}

// Ratio is consumed over effective quota, 0 when the quota is unlimited or
// unset.
func (s UsageSnapshot) Ratio() float64 {
	eq := s.EffectiveQuota()
	if eq <= 0 {
		return 0
	}
	return float64(s.Consumed) / float64(eq)
}

// TopUpQuote is the ephemeral result of pricing a token purchase.
// Never persisted; recomputed on every request and re-verified at
// confirmation time.
type TopUpQuote struct {
	TenantID       string    `json:"tenant_id"`
	PlanID         string    `json:"plan_id"`
	RequestedUnits int64     `json:"requested_units"`
	BonusUnits     int64     `json:"bonus_units"`
	FinalUnits     int64     `json:"final_units"`
	BasePrice      Money     `json:"base_price"`
	FinalPrice     Money     `json:"final_price"`
	Promotion      string    `json:"promotion,omitempty"`
	Discounts      []Applied `json:"discounts,omitempty"`
}

// SubscriptionQuote is the ephemeral result of pricing a multitenant
// subscription.
type SubscriptionQuote struct {
	PlanID          string `json:"plan_id"`
	SeatCount       int    `json:"seat_count"`
	IncludedSeats   int    `json:"included_seats"`
	AdditionalSeats int    `json:"additional_seats"`
	BasePrice       Money  `json:"base_price"`
	SeatOverage     Money  `json:"seat_overage"`
	TierDiscountPct string `json:"tier_discount_pct,omitempty"`
	TotalPrice      Money  `json:"total_price"`
}
