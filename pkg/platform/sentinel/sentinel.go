package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, feeds and lookups return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrUnavailable: durable medium or broker cannot serve the request right now
//   - ErrClosed: the component was shut down and accepts no more work
//
// For validation errors (bad input, empty text), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
