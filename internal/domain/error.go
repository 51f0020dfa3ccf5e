package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnknownPlanType      = errors.New("unknown plan type")
	ErrInvalidDate          = errors.New("date does not exist in target month")

	// ErrCurrentConflict signals more than one current subscription for a
	// tenant at rest. The store contract allows at most one; callers must
	// fail loudly instead of picking one arbitrarily.
	ErrCurrentConflict = errors.New("tenant has more than one current subscription")

	// Infrastructure-mapped errors
	ErrOperationFailed = errors.New("storage operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
	ErrLockBusy        = errors.New("tenant lock busy")
)
