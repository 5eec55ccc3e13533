package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Job orchestration
	ErrTrainingInFlight   = errors.New("a training job for this subject is already pending or running")
	ErrRequestNotRunnable = errors.New("request must be approved or failed before generation")
	ErrNotEnoughSamples   = errors.New("not enough sample photos")

	// Webhook event lock. A duplicate claim is a normal outcome, not a failure;
	// it gets its own sentinel so callers can short-circuit without reprocessing.
	ErrDuplicateEvent  = errors.New("event already claimed")
	ErrLockUnavailable = errors.New("event lock storage unavailable")
)
