package services

import "errors"

var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// ErrPersistenceFailure wraps store errors while applying a match.
	ErrPersistenceFailure = errors.New("failed to persist match results")
	// ErrHistoryContention means every recompute lost the race against
	// another match touching the same players.
	ErrHistoryContention = errors.New("player histories kept changing during processing")
	ErrInvalidMatchFacts = errors.New("match facts are incomplete")
)
