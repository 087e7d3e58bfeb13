package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// Membership lifecycle errors
var (
	// ErrConflict is returned when a plan selection collides with an
	// existing pending or active membership.
	ErrConflict = errors.New("membership already pending or active")

	// ErrInvalidState is returned for an illegal lifecycle transition,
	// including cancelling anything that is not active.
	ErrInvalidState = errors.New("illegal membership state transition")
)

// Reconciliation errors
var (
	// ErrReconciliation means the gateway confirmed something inconsistent
	// with local state. Money may have moved without a matching local
	// record, so callers must surface it and it is always persisted to the
	// reconciliation exceptions table for manual review.
	ErrReconciliation = errors.New("payment confirmation inconsistent with local state")

	// ErrGatewayUnavailable is returned when the payment gateway cannot be
	// reached; local state is left untouched so the call can be retried.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// UserErrors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserInactive      = errors.New("user account is inactive")
)
