package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JINAY2910/RideMate-sub000/internal/events"
	"github.com/JINAY2910/RideMate-sub000/internal/models"
	"github.com/JINAY2910/RideMate-sub000/internal/observability"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
)

// scanLimit bounds one sweep pass. Rides beyond it are picked up by the
// next tick.
const scanLimit = 10000

// Sweeper retires rides whose scheduled window has elapsed. Retired rides
// are marked completed, never deleted, so their bookings stay queryable.
// A ride is retired strictly when now > start+duration; at the boundary
// instant it stays active.
type Sweeper struct {
	Rides    storage.RideStore
	Events   *events.Producer // optional
	Interval time.Duration    // defaults to one minute
	Now      func() time.Time // defaults to time.Now
	Log      *slog.Logger
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return time.Minute
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Run ticks until the context is canceled. A failed sweep is logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Sweep(ctx); err != nil {
				s.Log.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass over active rides. Per-ride failures are logged and
// the scan continues; only a store-wide listing failure aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	rides, err := s.Rides.ListRides(ctx, storage.Filter{ActiveOnly: true, Limit: scanLimit})
	if err != nil {
		return err
	}
	now := s.now()
	for _, r := range rides {
		_, end, err := r.Window()
		if err != nil {
			s.Log.Warn("skipping ride with unparseable schedule", "ride_id", r.ID, "date", r.Date, "time", r.Time, "error", err)
			continue
		}
		if !now.After(end) {
			continue
		}
		if err := s.retire(ctx, r); err != nil {
			s.Log.Error("failed to retire ride", "ride_id", r.ID, "error", err)
			continue
		}
		s.Log.Info("ride retired", "ride_id", r.ID, "ended_at", end)
	}
	return nil
}

func (s *Sweeper) retire(ctx context.Context, ride *models.Ride) error {
	for attempt := 0; attempt < 5; attempt++ {
		cur, err := s.Rides.GetRide(ctx, ride.ID)
		if errors.Is(err, models.ErrNotFound) {
			return nil // deleted by its driver mid-sweep
		}
		if err != nil {
			return err
		}
		if cur.Status != models.RideActive {
			return nil
		}
		cur.Status = models.RideCompleted
		cur.UpdatedAt = time.Now().UTC()
		if err := s.Rides.UpdateRide(ctx, cur); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			return err
		}
		observability.RidesRetired.Inc()
		if s.Events != nil {
			if err := s.Events.Publish(ctx, events.RideEvent{Type: events.RideCompleted, RideID: cur.ID, DriverID: cur.DriverID}); err != nil {
				s.Log.Warn("event publish failed", "ride_id", cur.ID, "error", err)
			}
		}
		return nil
	}
	return models.ErrVersionConflict
}
