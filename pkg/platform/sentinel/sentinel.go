package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: record does not exist in the store or cache
// - ErrNotReady: a lazily built resource has not been populated yet
// - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrNotReady    = errors.New("not ready")
	ErrUnavailable = errors.New("unavailable")
)
