// Package memory provides the in-memory UsageStore, the default backend for
// single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/promptforge/tally/internal/domain"
)

type tenantLedger struct {
	planID      string
	consumed    int64
	purchased   int64
	quota       int64
	periodStart time.Time
}

// Store is an in-memory UsageStore. All mutations run under a single lock,
// which makes the consumed counter linearizable.
type Store struct {
	mu      sync.Mutex
	tenants map[string]*tenantLedger
	seen    map[string]bool // idempotency key dedup
}

var _ domain.UsageStore = (*Store)(nil)

// NewStore creates an empty in-memory usage store.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]*tenantLedger),
		seen:    make(map[string]bool),
	}
}

// Provision creates the ledger entry for a tenant.
func (s *Store) Provision(_ context.Context, tenantID, planID string, quota int64, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenantID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, tenantID)
	}

	s.tenants[tenantID] = &tenantLedger{
		planID:      planID,
		quota:       quota,
		periodStart: periodStart,
	}
	return nil
}

// Increment atomically adds units to raw consumption.
func (s *Store) Increment(_ context.Context, tenantID string, units int64, idemKey string) (domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idemKey != "" && s.seen[idemKey] {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, idemKey)
	}

	t, ok := s.tenants[tenantID]
	if !ok {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	t.consumed += units

	if idemKey != "" {
		s.seen[idemKey] = true
	}

	return s.snapshot(tenantID, t), nil
}

// Credit atomically adds units to the purchased-allowance counter.
func (s *Store) Credit(_ context.Context, tenantID string, units int64) (domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	t.purchased += units

	return s.snapshot(tenantID, t), nil
}

// Read returns the current snapshot for a tenant.
func (s *Store) Read(_ context.Context, tenantID string) (domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	return s.snapshot(tenantID, t), nil
}

// ResetPeriod zeroes the consumption counters for a new billing period.
func (s *Store) ResetPeriod(_ context.Context, tenantID string, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTenant, tenantID)
	}

	t.consumed = 0
	t.purchased = 0
	t.periodStart = periodStart
	return nil
}

func (s *Store) snapshot(tenantID string, t *tenantLedger) domain.UsageSnapshot {
	return domain.UsageSnapshot{
		TenantID:    tenantID,
		PlanID:      t.planID,
		Consumed:    t.consumed,
		Purchased:   t.purchased,
		Quota:       t.quota,
		PeriodStart: t.periodStart,
	}
}
