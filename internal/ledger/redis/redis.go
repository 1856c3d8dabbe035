// Package redis provides the Redis-backed UsageStore for multi-instance
// deployments. HIncrBy makes counter updates atomic server-side, so
// concurrent increments for the same tenant never lose an update.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promptforge/tally/internal/domain"
)

const (
	fieldPlan        = "plan_id"
	fieldConsumed    = "consumed"
	fieldPurchased   = "purchased"
	fieldQuota       = "quota"
	fieldPeriodStart = "period_start"

	// Idempotency keys outlive any realistic retry window, then expire.
	idemKeyTTL = 24 * time.Hour
)

// Store is a Redis-backed UsageStore.
type Store struct {
	client *redis.Client
}

var _ domain.UsageStore = (*Store)(nil)

// NewStore creates a Redis usage store.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

func tenantKey(tenantID string) string {
	return "tally:ledger:" + tenantID
}

func idemKey(key string) string {
	return "tally:idem:" + key
}

// Provision creates the ledger hash for a tenant.
func (s *Store) Provision(ctx context.Context, tenantID, planID string, quota int64, periodStart time.Time) error {
	key := tenantKey(tenantID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, tenantID)
	}

	err = s.client.HSet(ctx, key,
		fieldPlan, planID,
		fieldConsumed, 0,
		fieldPurchased, 0,
		fieldQuota, quota,
		fieldPeriodStart, periodStart.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// incrementScript checks the dedup key, checks the tenant exists, updates
// the counter, and only then commits the dedup key, all in one atomic step.
// A rejected or failed increment never consumes the key, so the event stays
// chargeable on retry; a consumed key always means the units were recorded.
var incrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return "duplicate"
end
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "unknown_tenant"
end
redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[2])
redis.call("SET", KEYS[2], 1, "EX", ARGV[3])
return "ok"
`)

// Increment atomically adds units to raw consumption.
func (s *Store) Increment(ctx context.Context, tenantID string, units int64, idem string) (domain.UsageSnapshot, error) {
	if idem == "" {
		if err := s.ensureTenant(ctx, tenantID); err != nil {
			return domain.UsageSnapshot{}, err
		}
		if err := s.client.HIncrBy(ctx, tenantKey(tenantID), fieldConsumed, units).Err(); err != nil {
			return domain.UsageSnapshot{}, fmt.Errorf("redis hincrby: %w", err)
		}
		return s.Read(ctx, tenantID)
	}

	status, err := incrementScript.Run(ctx, s.client,
		[]string{tenantKey(tenantID), idemKey(idem)},
		fieldConsumed, units, int(idemKeyTTL.Seconds()),
	).Text()
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("redis eval: %w", err)
	}
	switch status {
	case "duplicate":
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, idem)
	case "unknown_tenant":
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	return s.Read(ctx, tenantID)
}

// Credit atomically adds units to the purchased-allowance counter.
func (s *Store) Credit(ctx context.Context, tenantID string, units int64) (domain.UsageSnapshot, error) {
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return domain.UsageSnapshot{}, err
	}

	if err := s.client.HIncrBy(ctx, tenantKey(tenantID), fieldPurchased, units).Err(); err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("redis hincrby: %w", err)
	}

	return s.Read(ctx, tenantID)
}

// Read returns the current snapshot for a tenant.
func (s *Store) Read(ctx context.Context, tenantID string) (domain.UsageSnapshot, error) {
	values, err := s.client.HGetAll(ctx, tenantKey(tenantID)).Result()
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(values) == 0 {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	counter := func(field string) (int64, error) {
		v, err := strconv.ParseInt(values[field], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt ledger field %s for %s: %w", field, tenantID, err)
		}
		return v, nil
	}

	snap := domain.UsageSnapshot{
		TenantID: tenantID,
		PlanID:   values[fieldPlan],
	}
	if snap.Consumed, err = counter(fieldConsumed); err != nil {
		return domain.UsageSnapshot{}, err
	}
	if snap.Purchased, err = counter(fieldPurchased); err != nil {
		return domain.UsageSnapshot{}, err
	}
	if snap.Quota, err = counter(fieldQuota); err != nil {
		return domain.UsageSnapshot{}, err
	}
	if ts := values[fieldPeriodStart]; ts != "" {
		if snap.PeriodStart, err = time.Parse(time.RFC3339, ts); err != nil {
			return domain.UsageSnapshot{}, fmt.Errorf("corrupt ledger field %s for %s: %w", fieldPeriodStart, tenantID, err)
		}
	}

	return snap, nil
}

// ResetPeriod zeroes consumption counters for a new billing period.
func (s *Store) ResetPeriod(ctx context.Context, tenantID string, periodStart time.Time) error {
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return err
	}

	err := s.client.HSet(ctx, tenantKey(tenantID),
		fieldConsumed, 0,
		fieldPurchased, 0,
		fieldPeriodStart, periodStart.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *Store) ensureTenant(ctx context.Context, tenantID string) error {
	_, err := s.client.HGet(ctx, tenantKey(tenantID), fieldPlan).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}
	if err != nil {
		return fmt.Errorf("redis hget: %w", err)
	}
	return nil
}
