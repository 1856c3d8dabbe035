package domain

import "errors"

// Sentinel errors. Handlers map these to HTTP status codes with errors.Is;
// engines wrap them with %w to add context.
var (
	// Validation errors: rejected before any state mutation.
	ErrInvalidUnits         = errors.New("tally: unit count must be non-negative")
	ErrBelowMinimumPurchase = errors.New("tally: requested units below minimum purchase size")
	ErrBelowMinimumSeats    = errors.New("tally: seat count below multitenant minimum")

	// Not-found errors: surfaced verbatim, never silently defaulted.
	ErrUnknownModel  = errors.New("tally: no rate card for model")
	ErrUnknownTenant = errors.New("tally: unknown tenant")
	ErrUnknownPlan   = errors.New("tally: unknown plan")

	// Coupon errors: reported with a specific reason so the caller can decide
	// whether to proceed at full price.
	ErrCouponNotFound      = errors.New("tally: coupon not found")
	ErrCouponExpired       = errors.New("tally: coupon expired or inactive")
	ErrCouponExhausted     = errors.New("tally: coupon usage limit reached")
	ErrCouponScopeMismatch = errors.New("tally: coupon not valid for this purchase scope")

	// Catalog errors.
	ErrRateCardExists  = errors.New("tally: rate card already registered for model")
	ErrDuplicateEvent  = errors.New("tally: duplicate idempotency key")
	ErrConflict        = errors.New("tally: concurrent ledger update conflict")
	ErrTenantExists    = errors.New("tally: tenant already provisioned")
	ErrCouponExists    = errors.New("tally: coupon code already registered")
	ErrPromotionExists = errors.New("tally: promotion already registered")
)

// IsValidation reports whether err is a caller-input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUnits) ||
		errors.Is(err, ErrBelowMinimumPurchase) ||
		errors.Is(err, ErrBelowMinimumSeats)
}

// IsNotFound reports whether err is a missing-reference failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrUnknownTenant) ||
		errors.Is(err, ErrUnknownPlan) ||
		errors.Is(err, ErrCouponNotFound)
}

// IsCouponRejection reports whether err is a coupon that exists but does not
// apply to this transaction.
func IsCouponRejection(err error) bool {
	return errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponExhausted) ||
		errors.Is(err, ErrCouponScopeMismatch)
}
