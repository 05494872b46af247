package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and publishers
// return these (optionally wrapped) so services can translate them into
// domain errors:
//   - ErrNotFound: record or cache entry does not exist
//   - ErrUnavailable: database, cache or broker temporarily unreachable
//   - ErrInvalidState: stored data cannot be interpreted
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
