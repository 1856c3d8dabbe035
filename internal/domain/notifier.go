package domain

import (
	"context"
	"sync"
	"time"
)

// Notification reasons.
const (
	ReasonQuiet           = "quiet"
	ReasonThrottled       = "throttled"
	ReasonUsageThreshold  = "usage_threshold"
	ReasonPromotionAlways = "promotion_always"
	ReasonPromotionUsage  = "promotion_usage_threshold"
)

// NotifyDecision is the policy's answer for one tenant at one instant.
type NotifyDecision struct {
	ShouldNotify bool       `json:"should_notify"`
	Reason       string     `json:"reason"`
	UsageRatio   float64    `json:"usage_ratio"`
	Promotion    *Promotion `json:"promotion,omitempty"`
}

// NotifierPolicy decides whether a usage/promotion warning should surface
// for a tenant right now. Per tenant it cycles Quiet → Eligible → Shown →
// Quiet; the last-shown timestamp is owned here, server-side, and throttles
// repeat firings.
type NotifierPolicy struct {
	ledger *Ledger
	promos PromotionCatalog

	usageThreshold   float64       // default eligibility ratio
	defaultFrequency time.Duration // throttle window without a promotion

	mu        sync.Mutex
	lastShown map[string]time.Time
	now       func() time.Time
}

// NewNotifierPolicy creates a notifier policy (DI constructor).
// usageThreshold is a ratio in (0,1]; frequencyHours throttles firings when
// no promotion overrides it.
func NewNotifierPolicy(ledger *Ledger, promos PromotionCatalog, usageThreshold float64, frequencyHours int) *NotifierPolicy {
	if usageThreshold <= 0 {
		usageThreshold = 0.75
	}
	if frequencyHours <= 0 {
		frequencyHours = 1
	}
	return &NotifierPolicy{
		ledger:           ledger,
		promos:           promos,
		usageThreshold:   usageThreshold,
		defaultFrequency: time.Duration(frequencyHours) * time.Hour,
		lastShown:        make(map[string]time.Time),
		now:              time.Now,
	}
}

// Decide evaluates the policy for a tenant. A true result transitions the
// tenant straight through Shown back to Quiet: the firing timestamp is
// recorded and suppresses the next firing for the frequency window.
func (p *NotifierPolicy) Decide(ctx context.Context, tenantID string) (NotifyDecision, error) {
	snap, err := p.ledger.Read(ctx, tenantID)
	if err != nil {
		return NotifyDecision{}, err
	}

	promos, err := p.promos.ListActive(ctx)
	if err != nil {
		return NotifyDecision{}, err
	}

	ratio := snap.Ratio()
	reason, promo := p.eligibility(ratio, promos)
	decision := NotifyDecision{
		Reason:     reason,
		UsageRatio: ratio,
		Promotion:  promo,
	}
	if reason == ReasonQuiet {
		return decision, nil
	}

	frequency := p.defaultFrequency
	if promo != nil && promo.PopupFrequencyHours > 0 {
		frequency = time.Duration(promo.PopupFrequencyHours) * time.Hour
	}

	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastShown[tenantID]; ok && now.Sub(last) < frequency {
		// Eligible but inside the throttle window.
		decision.Reason = ReasonThrottled
		return decision, nil
	}

	p.lastShown[tenantID] = now
	decision.ShouldNotify = true
	return decision, nil
}

// eligibility checks the Quiet → Eligible transition: usage ratio over the
// configured threshold, or an active promotion whose trigger fires.
func (p *NotifierPolicy) eligibility(ratio float64, promos []Promotion) (string, *Promotion) {
	for i := range promos {
		promo := &promos[i]
		switch promo.PopupTrigger {
		case TriggerAlways:
			return ReasonPromotionAlways, promo
		case TriggerUsageThreshold:
			if promo.UsageThreshold > 0 && ratio >= promo.UsageThreshold {
				return ReasonPromotionUsage, promo
			}
		}
	}

	if ratio >= p.usageThreshold {
		return ReasonUsageThreshold, nil
	}

	return ReasonQuiet, nil
}
