package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// maxIncrementRetries bounds internal retries on store-level conflicts.
const maxIncrementRetries = 3

// IncrementResult reports the ledger state after an execution event.
type IncrementResult struct {
	TenantID     string `json:"tenant_id"`
	Consumed     int64  `json:"consumed"`
	OverageUnits int64  `json:"overage_units"`
}

// Ledger is the usage-metering service over a pluggable UsageStore.
// Execution is never blocked on overage: increments always succeed and the
// caller bills overage separately from OverageUnits.
type Ledger struct {
	store UsageStore
}

// NewLedger creates a ledger service (DI constructor).
func NewLedger(store UsageStore) *Ledger {
	return &Ledger{
		store: store,
	}
}

// Provision creates the ledger entry for a new tenant on its plan.
func (l *Ledger) Provision(ctx context.Context, tenantID, planID string, quota int64, periodStart time.Time) error {
	if tenantID == "" {
		return errors.New("tenant id cannot be empty")
	}
	if quota < 0 {
		return fmt.Errorf("%w: quota=%d", ErrInvalidUnits, quota)
	}
	return l.store.Provision(ctx, tenantID, planID, quota, periodStart)
}

// Increment records consumed units for an execution event. Conflicting
// store updates are retried a bounded number of times; the idempotency key
// keeps retries from double-charging.
func (l *Ledger) Increment(ctx context.Context, tenantID string, units int64, idemKey string) (IncrementResult, error) {
	if units < 0 {
		return IncrementResult{}, fmt.Errorf("%w: units=%d", ErrInvalidUnits, units)
	}

	var (
		snap UsageSnapshot
		err  error
	)
	for attempt := 0; attempt < maxIncrementRetries; attempt++ {
		snap, err = l.store.Increment(ctx, tenantID, units, idemKey)
		if !errors.Is(err, ErrConflict) {
			break
		}
	}
	if err != nil {
		return IncrementResult{}, err
	}

	return IncrementResult{
		TenantID:     tenantID,
		Consumed:     snap.Consumed,
		OverageUnits: snap.Overage(),
	}, nil
}

// Credit grants purchased allowance after a confirmed top-up. The raw
// consumption counter is never decreased: credits land in a separate
// purchased counter so the audit trail survives.
func (l *Ledger) Credit(ctx context.Context, tenantID string, units int64) (UsageSnapshot, error) {
	if units < 0 {
		return UsageSnapshot{}, fmt.Errorf("%w: units=%d", ErrInvalidUnits, units)
	}
	return l.store.Credit(ctx, tenantID, units)
}

// Read returns the tenant's current usage snapshot.
func (l *Ledger) Read(ctx context.Context, tenantID string) (UsageSnapshot, error) {
	return l.store.Read(ctx, tenantID)
}

// ResetPeriod starts a fresh billing period. Called by an external rollover
// trigger, not by the engine itself.
func (l *Ledger) ResetPeriod(ctx context.Context, tenantID string, periodStart time.Time) error {
	return l.store.ResetPeriod(ctx, tenantID, periodStart)
}
