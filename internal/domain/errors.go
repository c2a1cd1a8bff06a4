package domain

import "errors"

// Guard failures are rejected atomically: an operation that returns one of
// these errors has had no effect on stored state.
var (
	// ErrNotFound is returned for an unknown market id.
	ErrNotFound = errors.New("not found")

	// Input validation.
	ErrInvalidDeadline = errors.New("deadline must be in the future")
	ErrZeroStake       = errors.New("creator stake must be positive")
	ErrZeroAmount      = errors.New("bet amount must be positive")
	ErrInvalidSide     = errors.New("side must be yes or no")

	// State-machine violations.
	ErrMarketClosed      = errors.New("market is closed for betting")
	ErrTooEarly          = errors.New("deadline has not passed")
	ErrNotLocked         = errors.New("market is not locked")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrMarketNotResolved = errors.New("market is not resolved")

	// Authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// Claim violations.
	ErrAlreadyClaimed = errors.New("payout already claimed")
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrConflict signals that a store-level conditional mutation found the
	// record in a different state than the caller observed. The engine holds
	// a per-market lock, so this indicates an external writer.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrLockHeld is returned when a distributed lock is already held.
	ErrLockHeld = errors.New("lock already held")

	// ErrInvalidSignature is returned when a request signature does not
	// recover to a valid caller address.
	ErrInvalidSignature = errors.New("invalid signature")
)
