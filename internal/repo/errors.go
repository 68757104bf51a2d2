package repo

import "errors"

var (
	// ErrNotFound is returned when a row the caller asked for does not exist
	ErrNotFound = errors.New("not found")
	// ErrNoAgentAvailable is returned when no agent could be claimed
	ErrNoAgentAvailable = errors.New("no agent available")
)
