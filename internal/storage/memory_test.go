package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JINAY2910/RideMate-sub000/internal/models"
)

func seed(t *testing.T, st *MemoryStore, r *models.Ride) {
	t.Helper()
	if err := st.CreateRide(context.Background(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestGetRideNotFound(t *testing.T) {
	st := NewMemoryStore()
	if _, err := st.GetRide(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestUpdateRideCAS(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seed(t, st, &models.Ride{ID: "r1", Status: models.RideActive, Version: 1})

	a, _ := st.GetRide(ctx, "r1")
	b, _ := st.GetRide(ctx, "r1")

	a.Notes = "first writer"
	if err := st.UpdateRide(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("version not bumped: %d", a.Version)
	}

	b.Notes = "second writer"
	if err := st.UpdateRide(ctx, b); !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	// re-read and retry succeeds
	b, _ = st.GetRide(ctx, "r1")
	b.Notes = "second writer retry"
	if err := st.UpdateRide(ctx, b); err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seed(t, st, &models.Ride{ID: "r1", Requests: []models.Request{{ID: "q1", Status: models.RequestPending}}})

	a, _ := st.GetRide(ctx, "r1")
	a.Requests[0].Status = models.RequestApproved

	b, _ := st.GetRide(ctx, "r1")
	if b.Requests[0].Status != models.RequestPending {
		t.Fatal("store state mutated through a returned copy")
	}
}

func TestListRidesFiltersAndOrder(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seed(t, st, &models.Ride{ID: "late", DriverID: "d1", From: "Surat", Date: "2025-01-02", Time: "09:00", Status: models.RideActive})
	seed(t, st, &models.Ride{ID: "early", DriverID: "d1", From: "Ahmedabad", Date: "2025-01-01", Time: "18:00", Status: models.RideActive})
	seed(t, st, &models.Ride{ID: "earlier", DriverID: "d2", From: "Ahmedabad Airport", Date: "2025-01-01", Time: "08:00", Status: models.RideCompleted,
		Participants: []models.Participant{{RiderID: "p9", SeatsBooked: 1}}})

	all, err := st.ListRides(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "earlier" || all[1].ID != "early" || all[2].ID != "late" {
		t.Fatalf("bad schedule order: %v", ids(all))
	}

	active, _ := st.ListRides(ctx, Filter{ActiveOnly: true})
	if len(active) != 2 {
		t.Fatalf("active filter: %v", ids(active))
	}

	byDriver, _ := st.ListRides(ctx, Filter{DriverID: "d2"})
	if len(byDriver) != 1 || byDriver[0].ID != "earlier" {
		t.Fatalf("driver filter: %v", ids(byDriver))
	}

	byRider, _ := st.ListRides(ctx, Filter{RiderID: "p9"})
	if len(byRider) != 1 || byRider[0].ID != "earlier" {
		t.Fatalf("participant filter: %v", ids(byRider))
	}

	byText, _ := st.ListRides(ctx, Filter{FromText: "ahmedabad"})
	if len(byText) != 2 {
		t.Fatalf("substring filter should be case-insensitive: %v", ids(byText))
	}

	capped, _ := st.ListRides(ctx, Filter{Limit: 1})
	if len(capped) != 1 {
		t.Fatalf("limit not applied: %v", ids(capped))
	}
}

func TestListRidesProximityOrder(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seed(t, st, &models.Ride{ID: "close", Origin: models.Coord{Lat: 23.03, Lng: 72.58}, Date: "2025-01-02", Time: "09:00", Status: models.RideActive})
	seed(t, st, &models.Ride{ID: "closer", Origin: models.Coord{Lat: 23.0225, Lng: 72.5714}, Date: "2025-01-03", Time: "09:00", Status: models.RideActive})
	seed(t, st, &models.Ride{ID: "outside", Origin: models.Coord{Lat: 19.07, Lng: 72.87}, Date: "2025-01-01", Time: "09:00", Status: models.RideActive})

	center := models.Coord{Lat: 23.0225, Lng: 72.5714}
	got, err := st.ListRides(ctx, Filter{NearFrom: &center, RadiusKm: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "closer" || got[1].ID != "close" {
		t.Fatalf("expected nearest-first within radius, got %v", ids(got))
	}
}

func TestBookingLedgerRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seed(t, st, &models.Ride{ID: "r1", DriverID: "d1", From: "A", To: "B", Date: "2025-01-01", Time: "10:00"})

	older := &models.Booking{ID: "b1", RequestID: "q1", RideID: "r1", RiderID: "p1", Seats: 1, TotalPrice: 50,
		Status: models.RequestPending, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Booking{ID: "b2", RequestID: "q2", RideID: "r1", RiderID: "p1", Seats: 2, TotalPrice: 100,
		Status: models.RequestPending, CreatedAt: time.Now()}
	for _, b := range []*models.Booking{older, newer} {
		if err := st.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
	}

	if err := st.UpdateBookingStatus(ctx, "q1", models.RequestApproved); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := st.UpdateBookingStatus(ctx, "missing", models.RequestApproved); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	got, err := st.ListBookingsForRider(ctx, "p1")
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b2" || got[1].ID != "b1" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if got[1].Status != models.RequestApproved {
		t.Fatalf("status update lost: %+v", got[1])
	}
	if got[0].From != "A" || got[0].DriverID != "d1" {
		t.Fatalf("ride summary missing: %+v", got[0])
	}
}

func ids(rides []*models.Ride) []string {
	out := make([]string, len(rides))
	for i, r := range rides {
		out[i] = r.ID
	}
	return out
}
