package database

import "errors"

// Sentinel errors surfaced by booking transactions. Every violated invariant
// aborts the whole transaction; callers classify with errors.Is.
var (
	ErrInvalidSlot         = errors.New("instant is not a legal calendar slot")
	ErrSlotUnavailable     = errors.New("time slot is already booked or blocked")
	ErrProfileNotFound     = errors.New("user profile not found")
	ErrUserBlocked         = errors.New("user is blocked from making bookings")
	ErrActiveBookingExists = errors.New("user already has an active future booking")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrUnauthorized        = errors.New("booking belongs to another user")
	ErrInvalidState        = errors.New("booking is not active")
	ErrCutoffExceeded      = errors.New("too close to the appointment to cancel")
	ErrQuotaExceeded       = errors.New("monthly cancellation limit reached")

	// ErrPermissionDenied is the generic denial an access-control layer in
	// front of the store may return. The orchestrator re-diagnoses it into a
	// specific cutoff/quota reason before display.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStoreUnavailable wraps transport failures and conflict-retry
	// exhaustion.
	ErrStoreUnavailable = errors.New("store unavailable")
)
