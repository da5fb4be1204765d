package service

import "errors"

var (
	// ErrEventExists is returned when attempting to create an event that
	// already exists.
	ErrEventExists = errors.New("event already exists")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidRequest is returned when request data is invalid or
	// incomplete.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStockNotInitialized mirrors the atomic decision script's
	// STOCK_NOT_INITIALIZED fail code. Terminal and operator-facing: the
	// handler does not retry it (spec §4.1, §7).
	ErrStockNotInitialized = errors.New("stock not initialized")

	// ErrStoreUnavailable signals the in-memory store could not be
	// reached before the decision was evaluated. Fatal to the current
	// request (spec §4.2, §7).
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPublishFailed signals the durable log producer exhausted its
	// retry budget after a PASS (spec §4.3, §7).
	ErrPublishFailed = errors.New("publish failed")

	// ErrCompensationFailed signals the compensating script itself could
	// not be applied after a failed publish. Logged and surfaced to
	// reconciliation (C7), never to the client (spec §4.4, §7).
	ErrCompensationFailed = errors.New("compensation failed")
)
