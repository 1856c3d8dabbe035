package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// InMemoryCouponCatalog stores coupons in memory.
type InMemoryCouponCatalog struct {
	mu      sync.RWMutex
	coupons map[string]Coupon
}

// NewInMemoryCouponCatalog creates an empty coupon catalog.
func NewInMemoryCouponCatalog() *InMemoryCouponCatalog {
	return &InMemoryCouponCatalog{
		coupons: make(map[string]Coupon),
	}
}

var _ CouponCatalog = (*InMemoryCouponCatalog)(nil)

// Get retrieves a coupon by code.
func (c *InMemoryCouponCatalog) Get(_ context.Context, code string) (Coupon, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coupon, exists := c.coupons[code]
	if !exists {
		return Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
	}

	return coupon, nil
}

// Register adds a coupon. Percentage values are clamped to [0,100] at the
// boundary so a misconfigured coupon can never invert a price.
func (c *InMemoryCouponCatalog) Register(_ context.Context, coupon Coupon) error {
	if coupon.Code == "" {
		return errors.New("coupon code cannot be empty")
	}
	if coupon.Type == CouponPercentage {
		coupon.Value = clampPercent(coupon.Value)
	}
	if coupon.Scope == "" {
		coupon.Scope = ScopeGlobal
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.coupons[coupon.Code]; exists {
		return fmt.Errorf("%w: %s", ErrCouponExists, coupon.Code)
	}

	c.coupons[coupon.Code] = coupon
	return nil
}

// MarkUsed increments the used count at transaction confirmation.
func (c *InMemoryCouponCatalog) MarkUsed(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	coupon, exists := c.coupons[code]
	if !exists {
		return fmt.Errorf("%w: %s", ErrCouponNotFound, code)
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return fmt.Errorf("%w: %s", ErrCouponExhausted, code)
	}

	coupon.UsedCount++
	c.coupons[code] = coupon
	return nil
}

func clampPercent(v Decimal) Decimal {
	zero := NewDecimalFromInt64(0)
	hundred := NewDecimalFromInt64(100)
	if v.Cmp(zero) < 0 {
		return zero
	}
	if v.Cmp(hundred) > 0 {
		return hundred
	}
	return v
}

// InMemoryPromotionCatalog stores promotions in memory.
type InMemoryPromotionCatalog struct {
	mu     sync.RWMutex
	promos map[string]Promotion
}

// NewInMemoryPromotionCatalog creates an empty promotion catalog.
func NewInMemoryPromotionCatalog() *InMemoryPromotionCatalog {
	return &InMemoryPromotionCatalog{
		promos: make(map[string]Promotion),
	}
}

var _ PromotionCatalog = (*InMemoryPromotionCatalog)(nil)

// ListActive returns active promotions in a stable order.
func (c *InMemoryPromotionCatalog) ListActive(_ context.Context) ([]Promotion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := make([]Promotion, 0, len(c.promos))
	for _, p := range c.promos {
		if p.Active {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	return active, nil
}

// Register adds a promotion.
func (c *InMemoryPromotionCatalog) Register(_ context.Context, promo Promotion) error {
	if promo.ID == "" {
		return errors.New("promotion id cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.promos[promo.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPromotionExists, promo.ID)
	}

	c.promos[promo.ID] = promo
	return nil
}
