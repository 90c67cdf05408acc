package storage

import (
	"context"

	"github.com/JINAY2910/RideMate-sub000/internal/models"
)

// RideStore defines persistence operations for rides. UpdateRide is a
// compare-and-swap: it succeeds only when the stored version matches the
// version the caller read, and bumps the version on success. Callers that
// lose the race get models.ErrVersionConflict and are expected to re-read
// and retry.
type RideStore interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	UpdateRide(ctx context.Context, r *models.Ride) error
	DeleteRide(ctx context.Context, id string) error
	ListRides(ctx context.Context, f Filter) ([]*models.Ride, error)
}

// BookingStore is the ledger side: one booking per request, keyed by the
// request id, updated in place as the request's status changes.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	UpdateBookingStatus(ctx context.Context, requestID string, status models.RequestStatus) error
	ListBookingsForRider(ctx context.Context, riderID string) ([]*models.BookingSummary, error)
}

const (
	DefaultListLimit = 100
	DefaultRadiusKm  = 50
)

// Filter restricts ListRides. Zero-value fields are ignored. When NearFrom
// or NearTo is set the result is ordered by distance to that point instead
// of by schedule, and rides outside RadiusKm are dropped.
type Filter struct {
	DriverID   string
	RiderID    string // matches confirmed participants
	ActiveOnly bool
	Date       string
	FromText   string        // case-insensitive substring on the origin label
	ToText     string        // case-insensitive substring on the destination label
	NearFrom   *models.Coord // proximity on the ride origin
	NearTo     *models.Coord // proximity on the ride destination
	RadiusKm   float64       // defaults to DefaultRadiusKm when a Near* is set
	Limit      int           // defaults to DefaultListLimit
}

func (f Filter) limit() int {
	if f.Limit > 0 {
		return f.Limit
	}
	return DefaultListLimit
}

func (f Filter) radiusKm() float64 {
	if f.RadiusKm > 0 {
		return f.RadiusKm
	}
	return DefaultRadiusKm
}
