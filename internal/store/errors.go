package store

import "errors"

var (
	// ErrStoreUnavailable signals a connection/cluster failure before the
	// script could be evaluated (spec §4.2, §7). Fatal to the current
	// request.
	ErrStoreUnavailable = errors.New("store: unavailable")

	// ErrScriptError signals a malformed reply from the atomic decision
	// or compensating script.
	ErrScriptError = errors.New("store: malformed script reply")
)
