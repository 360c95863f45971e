package domain

import (
	"errors"
	"fmt"
)

var (
	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMalformedIdentity    = errors.New("malformed identity payload")
	ErrAuthorizationDenied  = errors.New("authorization denied")

	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrLockHeld        = errors.New("lock is held by another owner")

	// ErrConflict is the parent of every rejected-by-state error below.
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = fmt.Errorf("%w: entity already exists", ErrConflict)
	ErrDemoAlreadyGranted = fmt.Errorf("%w: demo already granted", ErrConflict)
	ErrDemoNotAllowed     = fmt.Errorf("%w: product does not allow demo access", ErrConflict)
	ErrPromoExhausted     = fmt.Errorf("%w: promo code exhausted", ErrConflict)
	ErrMemoCollision      = fmt.Errorf("%w: payment memo collision", ErrConflict)
	ErrInvalidTransition  = fmt.Errorf("%w: invalid status transition", ErrConflict)

	// Storage
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
