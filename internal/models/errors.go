package models

import "errors"

// Domain error taxonomy shared by the stores, the booking engine and the
// HTTP layer. ErrVersionConflict is the CAS loser signal; writers retry it.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrRideInactive      = errors.New("ride is not active")
	ErrInsufficientSeats = errors.New("insufficient seats available")
	ErrDuplicateRequest  = errors.New("rider already has an open request on this ride")
	ErrInvalidSeats      = errors.New("seats requested must be at least 1")
	ErrInvalidDecision   = errors.New("decision must be approved or rejected")
	ErrVersionConflict   = errors.New("ride version conflict")
)
