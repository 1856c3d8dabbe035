package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/promptforge/tally/internal/config"
	"github.com/promptforge/tally/internal/domain"
	"github.com/promptforge/tally/internal/httpserver"
	"github.com/promptforge/tally/internal/httpserver/middleware"
	ledgermem "github.com/promptforge/tally/internal/ledger/memory"
	ledgerredis "github.com/promptforge/tally/internal/ledger/redis"
	"github.com/promptforge/tally/internal/observability"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Catalogs
	if err := container.Provide(func() domain.RateCardCatalog {
		return domain.NewInMemoryRateCardCatalog()
	}); err != nil {
		log.Fatalf("Failed to provide rate card catalog: %v", err)
	}
	if err := container.Provide(func() domain.PlanCatalog {
		return domain.NewInMemoryPlanCatalog()
	}); err != nil {
		log.Fatalf("Failed to provide plan catalog: %v", err)
	}
	if err := container.Provide(func() domain.CouponCatalog {
		return domain.NewInMemoryCouponCatalog()
	}); err != nil {
		log.Fatalf("Failed to provide coupon catalog: %v", err)
	}
	if err := container.Provide(func() domain.PromotionCatalog {
		return domain.NewInMemoryPromotionCatalog()
	}); err != nil {
		log.Fatalf("Failed to provide promotion catalog: %v", err)
	}

	// Ledger store: Redis when configured, in-memory otherwise.
	if err := container.Provide(func(cfg *config.RedisConfig) domain.UsageStore {
		if cfg.Addr == "" {
			return ledgermem.NewStore()
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return ledgerredis.NewStore(client)
	}); err != nil {
		log.Fatalf("Failed to provide usage store: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewLedger); err != nil {
		log.Fatalf("Failed to provide ledger: %v", err)
	}
	if err := container.Provide(domain.NewCostCalculator); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}
	if err := container.Provide(domain.NewDiscountEngine); err != nil {
		log.Fatalf("Failed to provide discount engine: %v", err)
	}
	if err := container.Provide(func(
		ledger *domain.Ledger,
		plans domain.PlanCatalog,
		promos domain.PromotionCatalog,
		coupons domain.CouponCatalog,
		discounts *domain.DiscountEngine,
		cfg *config.PricingConfig,
	) *domain.TopUpEngine {
		return domain.NewTopUpEngine(ledger, plans, promos, coupons, discounts, cfg.MinTopUpUnits)
	}); err != nil {
		log.Fatalf("Failed to provide top-up engine: %v", err)
	}
	if err := container.Provide(domain.NewSubscriptionEngine); err != nil {
		log.Fatalf("Failed to provide subscription engine: %v", err)
	}
	if err := container.Provide(func(
		ledger *domain.Ledger,
		promos domain.PromotionCatalog,
		cfg *config.PricingConfig,
	) *domain.NotifierPolicy {
		return domain.NewNotifierPolicy(ledger, promos, cfg.NotifyThreshold, cfg.PopupFrequencyHours)
	}); err != nil {
		log.Fatalf("Failed to provide notifier policy: %v", err)
	}

	// Seed reference data (invoked for side effects)
	if err := container.Invoke(func(
		cfg *config.CatalogConfig,
		rateCards domain.RateCardCatalog,
		plans domain.PlanCatalog,
		coupons domain.CouponCatalog,
		promos domain.PromotionCatalog,
		ledger *domain.Ledger,
	) error {
		seed, err := config.LoadSeed(cfg.Path)
		if err != nil {
			return err
		}
		return config.ApplySeed(context.Background(), seed, rateCards, plans, coupons, promos, ledger)
	}); err != nil {
		log.Fatalf("Failed to seed catalogs: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
