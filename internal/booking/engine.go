package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/events"
	"github.com/JINAY2910/RideMate-sub000/internal/models"
	"github.com/JINAY2910/RideMate-sub000/internal/observability"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
)

// PaymentHolder places a manual-capture hold for an approved booking.
// Settlement is out of scope; the hold is best-effort.
type PaymentHolder interface {
	Hold(ctx context.Context, amountCents int64, currency, customerID string) (string, error)
}

// casAttempts bounds the optimistic retry loop. Conflicts only arise from
// concurrent writers on the same ride, so a handful of retries is plenty.
const casAttempts = 5

// Engine applies seat-inventory mutations to rides. All read-check-write
// sequences run through a compare-and-swap loop on the ride version, so two
// concurrent approvals can never observe the same pre-decrement seat count.
// The mirrored booking row is written in the same logical operation, after
// the ride CAS lands.
type Engine struct {
	Rides    storage.RideStore
	Bookings storage.BookingStore
	Events   *events.Producer // optional
	Payments PaymentHolder    // optional
	Currency string           // ISO code for payment holds, default "usd"
	Log      *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// SubmitRequest appends a pending seat request for the rider and mirrors it
// into the booking ledger. The seat check here is point-in-time; the
// authoritative check happens again at approval.
func (e *Engine) SubmitRequest(ctx context.Context, rideID string, rider auth.Identity, seats int) (*models.Ride, error) {
	if seats < 1 {
		return nil, models.ErrInvalidSeats
	}

	var (
		ride  *models.Ride
		reqID = newID()
		now   = time.Now().UTC()
	)
	for attempt := 0; ; attempt++ {
		cur, err := e.Rides.GetRide(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if cur.Status != models.RideActive {
			return nil, models.ErrRideInactive
		}
		if seats > cur.SeatsAvailable {
			return nil, models.ErrInsufficientSeats
		}
		if cur.OpenRequestFor(rider.UserID) != nil {
			return nil, models.ErrDuplicateRequest
		}
		next := cur.Clone()
		next.Requests = append(next.Requests, models.Request{
			ID:          reqID,
			RiderID:     rider.UserID,
			RiderName:   rider.Name,
			RiderRating: rider.Rating,
			Seats:       seats,
			Status:      models.RequestPending,
			CreatedAt:   now,
		})
		next.UpdatedAt = now
		if err := e.Rides.UpdateRide(ctx, next); err != nil {
			if errors.Is(err, models.ErrVersionConflict) && attempt < casAttempts-1 {
				continue
			}
			return nil, err
		}
		ride = next
		break
	}

	b := &models.Booking{
		ID:         newID(),
		RequestID:  reqID,
		RideID:     rideID,
		RiderID:    rider.UserID,
		Seats:      seats,
		TotalPrice: ride.Price * float64(seats),
		Status:     models.RequestPending,
		CreatedAt:  now,
	}
	if err := e.Bookings.CreateBooking(ctx, b); err != nil {
		// The request landed but the ledger row did not: surface it so the
		// caller knows the write partially applied. No retry here — that
		// could double-create.
		return nil, fmt.Errorf("booking ledger write failed: %w", err)
	}

	observability.RequestsSubmitted.Inc()
	e.emit(ctx, events.RideEvent{Type: events.RequestSubmitted, RideID: rideID, DriverID: ride.DriverID, RiderID: rider.UserID, Seats: seats})
	return ride, nil
}

// DecideRequest approves or rejects a pending request. Only the ride's
// driver may decide. Repeating a decision that already took effect is a
// success no-op; seat inventory is decremented exactly once per approval.
func (e *Engine) DecideRequest(ctx context.Context, rideID, requestID string, decision models.RequestStatus, actorID string) (*models.Ride, error) {
	if decision != models.RequestApproved && decision != models.RequestRejected {
		return nil, fmt.Errorf("%w: decision %q", models.ErrInvalidDecision, decision)
	}

	for attempt := 0; ; attempt++ {
		cur, err := e.Rides.GetRide(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if cur.DriverID != actorID {
			return nil, models.ErrForbidden
		}
		req := cur.RequestByID(requestID)
		if req == nil {
			return nil, models.ErrNotFound
		}
		if req.Status != models.RequestPending {
			// Already settled. Identical or contradictory, the stored decision
			// stands; callers get success and the current state.
			return cur, nil
		}
		if decision == models.RequestApproved {
			if cur.Status != models.RideActive {
				return nil, models.ErrRideInactive
			}
			// Authoritative seat recheck: capacity may have been consumed by a
			// concurrent approval since this request was submitted.
			if cur.SeatsAvailable < req.Seats {
				return nil, models.ErrInsufficientSeats
			}
		}

		next := cur.Clone()
		nreq := next.RequestByID(requestID)
		nreq.Status = decision
		if decision == models.RequestApproved {
			next.SeatsAvailable -= nreq.Seats
			if next.ParticipantFor(nreq.RiderID) == nil {
				next.Participants = append(next.Participants, models.Participant{
					RiderID:     nreq.RiderID,
					RiderName:   nreq.RiderName,
					SeatsBooked: nreq.Seats,
					Status:      "confirmed",
					JoinedAt:    time.Now().UTC(),
				})
			}
		}
		next.UpdatedAt = time.Now().UTC()
		if err := e.Rides.UpdateRide(ctx, next); err != nil {
			if errors.Is(err, models.ErrVersionConflict) && attempt < casAttempts-1 {
				continue
			}
			return nil, err
		}

		if err := e.Bookings.UpdateBookingStatus(ctx, requestID, decision); err != nil {
			// The ride mutation landed but the mirror did not. Surface the
			// partial write; a repeated decision is a safe no-op on the ride.
			return nil, fmt.Errorf("booking ledger update failed after %s: %w", decision, err)
		}
		e.afterDecision(ctx, next, nreq, decision)
		return next, nil
	}
}

func (e *Engine) afterDecision(ctx context.Context, ride *models.Ride, req *models.Request, decision models.RequestStatus) {
	evType := events.RequestRejected
	if decision == models.RequestApproved {
		evType = events.RequestApproved
		observability.SeatsBooked.Add(float64(req.Seats))
		if e.Payments != nil {
			amount := int64(ride.Price*float64(req.Seats)*100 + 0.5)
			if _, err := e.Payments.Hold(ctx, amount, e.currency(), req.RiderID); err != nil {
				e.logger().Warn("payment hold failed", "ride_id", ride.ID, "rider_id", req.RiderID, "error", err)
			}
		}
	}
	observability.RequestsDecided.WithLabelValues(string(decision)).Inc()
	e.emit(ctx, events.RideEvent{Type: evType, RideID: ride.ID, DriverID: ride.DriverID, RiderID: req.RiderID, Seats: req.Seats})
}

func (e *Engine) currency() string {
	if e.Currency != "" {
		return e.Currency
	}
	return "usd"
}

func (e *Engine) emit(ctx context.Context, ev events.RideEvent) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Publish(ctx, ev); err != nil {
		e.logger().Warn("event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
