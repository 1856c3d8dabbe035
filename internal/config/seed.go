package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptforge/tally/internal/domain"
)

// TenantSeed provisions a tenant at startup.
type TenantSeed struct {
	ID     string `yaml:"id"`
	PlanID string `yaml:"plan_id"`
	Quota  int64  `yaml:"quota"` // 0 = use the plan's unit quota
}

// SeedFile is the administrator-managed reference data catalog: rate cards,
// plans, coupons, promotions, and initial tenants.
type SeedFile struct {
	RateCards  []domain.RateCard  `yaml:"rate_cards"`
	Plans      []domain.Plan      `yaml:"plans"`
	Coupons    []domain.Coupon    `yaml:"coupons"`
	Promotions []domain.Promotion `yaml:"promotions"`
	Tenants    []TenantSeed       `yaml:"tenants"`
}

// LoadSeed parses the YAML catalog file. A missing file is not an error:
// the service can start with the built-in plans and an empty catalog.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SeedFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	return &seed, nil
}

// ApplySeed registers all seed data into the catalogs and provisions seed
// tenants.
func ApplySeed(
	ctx context.Context,
	seed *SeedFile,
	rateCards domain.RateCardCatalog,
	plans domain.PlanCatalog,
	coupons domain.CouponCatalog,
	promos domain.PromotionCatalog,
	ledger *domain.Ledger,
) error {
	for _, card := range seed.RateCards {
		if err := rateCards.Register(ctx, card); err != nil {
			return fmt.Errorf("seeding rate card: %w", err)
		}
	}
	for _, plan := range seed.Plans {
		if err := plans.Register(ctx, plan); err != nil {
			return fmt.Errorf("seeding plan: %w", err)
		}
	}
	for _, coupon := range seed.Coupons {
		if err := coupons.Register(ctx, coupon); err != nil {
			return fmt.Errorf("seeding coupon: %w", err)
		}
	}
	for _, promo := range seed.Promotions {
		if err := promos.Register(ctx, promo); err != nil {
			return fmt.Errorf("seeding promotion: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, tenant := range seed.Tenants {
		quota := tenant.Quota
		if quota == 0 {
			plan, err := plans.Get(ctx, tenant.PlanID)
			if err != nil {
				return fmt.Errorf("seeding tenant %s: %w", tenant.ID, err)
			}
			quota = plan.UnitQuota
		}
		if err := ledger.Provision(ctx, tenant.ID, tenant.PlanID, quota, now); err != nil {
			return fmt.Errorf("seeding tenant %s: %w", tenant.ID, err)
		}
	}

	return nil
}
