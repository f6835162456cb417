package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Admission errors. Both are raised before any provider call and leave
	// session state untouched; they are user-actionable, not bugs.
	ErrTurnLimitExceeded = errors.New("turn limit reached: start a new session or raise agent.max_turns")
	ErrCostLimitExceeded = errors.New("cost limit reached: start a new session or raise agent.max_cost_usd")

	ErrSessionNotActive   = errors.New("chat session is not active")
	ErrStreamNotSupported = errors.New("provider does not support streaming")
)
