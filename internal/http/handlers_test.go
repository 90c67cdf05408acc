package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/booking"
	"github.com/JINAY2910/RideMate-sub000/internal/geocode"
	"github.com/JINAY2910/RideMate-sub000/internal/logging"
	"github.com/JINAY2910/RideMate-sub000/internal/models"
	"github.com/JINAY2910/RideMate-sub000/internal/relay"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
)

const testSecret = "test-secret"

// fakeGeocoder resolves a fixed set of place names.
type fakeGeocoder struct {
	places map[string]geocode.Place
}

func (f *fakeGeocoder) Resolve(ctx context.Context, q string) (geocode.Place, error) {
	if p, ok := f.places[strings.ToLower(q)]; ok {
		return p, nil
	}
	return geocode.Place{}, geocode.ErrNotFound
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	log := logging.NewLogger(io.Discard, "error")
	verifier := auth.NewJWTVerifier(testSecret)
	engine := &booking.Engine{Rides: st, Bookings: st, Log: log}
	srv := NewServer(Options{
		Rides:    st,
		Bookings: st,
		Engine:   engine,
		Relay:    relay.NewService(verifier, relay.NewRegistry(), log),
		Verifier: verifier,
		Geocoder: &fakeGeocoder{places: map[string]geocode.Place{
			"ahmedabad": {Lat: 23.0225, Lng: 72.5714, Name: "Ahmedabad"},
			"vadodara":  {Lat: 22.3072, Lng: 73.1812, Name: "Vadodara"},
		}},
		Logger: log,
	})
	return srv, st
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, id, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, srv http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeRide(t *testing.T, w *httptest.ResponseRecorder) *models.Ride {
	t.Helper()
	var ride models.Ride
	if err := json.NewDecoder(w.Body).Decode(&ride); err != nil {
		t.Fatalf("decode ride: %v", err)
	}
	return &ride
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := doJSON(t, srv, "GET", "/api/v1/rides", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := doJSON(t, srv, "GET", "/api/v1/rides", "garbage-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestCreateRideRequiresDriverRole(t *testing.T) {
	srv, _ := newTestServer(t)
	riderTok := token(t, auth.Identity{UserID: "r1", Role: auth.RoleRider})
	body := map[string]any{"from": "A", "to": "B", "date": "2025-01-01", "time": "10:00", "price": 10, "seats_total": 2}
	if w := doJSON(t, srv, "POST", "/api/v1/rides", riderTok, body); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body)
	}
}

func TestCreateRideGeocodesLabels(t *testing.T) {
	srv, _ := newTestServer(t)
	drvTok := token(t, auth.Identity{UserID: "d1", Name: "Dara", Role: auth.RoleDriver})
	body := map[string]any{"from": "Ahmedabad", "to": "Vadodara", "date": "2025-01-01", "time": "10:00", "price": 50, "seats_total": 3}
	w := doJSON(t, srv, "POST", "/api/v1/rides", drvTok, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	ride := decodeRide(t, w)
	if ride.Origin.Lat == 0 || ride.Destination.Lng == 0 {
		t.Fatalf("labels not geocoded: %+v", ride)
	}
	if ride.SeatsAvailable != 3 || ride.Status != models.RideActive {
		t.Fatalf("bad initial state: %+v", ride)
	}
}

func TestCreateRideValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	drvTok := token(t, auth.Identity{UserID: "d1", Role: auth.RoleDriver})
	cases := []map[string]any{
		{"from": "", "to": "B", "date": "2025-01-01", "time": "10:00", "seats_total": 2},
		{"from": "A", "to": "B", "date": "01/01/2025", "time": "10:00", "seats_total": 2},
		{"from": "A", "to": "B", "date": "2025-01-01", "time": "10:00", "seats_total": 0},
		{"from": "A", "to": "B", "date": "2025-01-01", "time": "10:00", "seats_total": 2, "price": -1},
	}
	for i, body := range cases {
		if w := doJSON(t, srv, "POST", "/api/v1/rides", drvTok, body); w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d: %s", i, w.Code, w.Body)
		}
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	drvTok := token(t, auth.Identity{UserID: "d1", Name: "Dara", Role: auth.RoleDriver})
	riderTok := token(t, auth.Identity{UserID: "r1", Name: "Asha", Role: auth.RoleRider, Rating: 4.8})

	w := doJSON(t, srv, "POST", "/api/v1/rides", drvTok, map[string]any{
		"from": "Ahmedabad", "to": "Vadodara", "date": "2025-01-01", "time": "10:00", "price": 50, "seats_total": 3,
	})
	ride := decodeRide(t, w)

	// rider asks for 2 seats
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests", ride.ID), riderTok, map[string]any{"seats": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", w.Code, w.Body)
	}
	ride = decodeRide(t, w)
	reqID := ride.Requests[0].ID

	// duplicate submission is a conflict
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests", ride.ID), riderTok, map[string]any{"seats": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", w.Code)
	}

	// only the driver may decide
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests/%s/decision", ride.ID, reqID), riderTok, map[string]any{"decision": "approved"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-driver decision: expected 403, got %d", w.Code)
	}

	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests/%s/decision", ride.ID, reqID), drvTok, map[string]any{"decision": "approved"})
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body)
	}
	ride = decodeRide(t, w)
	if ride.SeatsAvailable != 1 || len(ride.Participants) != 1 {
		t.Fatalf("approval not applied: %+v", ride)
	}

	// rider sees the approved booking with ride summary
	w = doJSON(t, srv, "GET", "/api/v1/bookings", riderTok, nil)
	var bookings []models.BookingSummary
	if err := json.NewDecoder(w.Body).Decode(&bookings); err != nil {
		t.Fatalf("decode bookings: %v", err)
	}
	if len(bookings) != 1 || bookings[0].Status != models.RequestApproved || bookings[0].TotalPrice != 100 {
		t.Fatalf("unexpected bookings: %+v", bookings)
	}

	// another rider cannot fit 2 seats anymore
	otherTok := token(t, auth.Identity{UserID: "r2", Role: auth.RoleRider})
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests", ride.ID), otherTok, map[string]any{"seats": 2})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 InsufficientSeats, got %d: %s", w.Code, w.Body)
	}

	// bad decision value
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%s/requests/%s/decision", ride.ID, reqID), drvTok, map[string]any{"decision": "maybe"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad decision, got %d", w.Code)
	}
}

func TestListRidesProximityAndFallback(t *testing.T) {
	srv, st := newTestServer(t)
	seed := func(id, from string, lat, lng float64) {
		err := st.CreateRide(context.Background(), &models.Ride{
			ID: id, DriverID: "d1", From: from, To: "Somewhere",
			Origin: models.Coord{Lat: lat, Lng: lng},
			Date:   "2025-01-01", Time: "10:00",
			SeatsTotal: 2, SeatsAvailable: 2, Status: models.RideActive,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seed("near", "Ahmedabad Central", 23.03, 72.58)
	seed("far", "Vadodara Station", 22.31, 73.18)

	tok := token(t, auth.Identity{UserID: "r1", Role: auth.RoleRider})

	// proximity: Ahmedabad resolves, only the near ride is within 50km
	w := doJSON(t, srv, "GET", "/api/v1/rides?near_from=Ahmedabad", tok, nil)
	var rides []*models.Ride
	if err := json.NewDecoder(w.Body).Decode(&rides); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != "near" {
		t.Fatalf("proximity filter failed: %+v", rides)
	}

	// unresolvable place name falls back to substring matching
	w = doJSON(t, srv, "GET", "/api/v1/rides?near_from=Vadodara%20Station", tok, nil)
	rides = nil
	if err := json.NewDecoder(w.Body).Decode(&rides); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != "far" {
		t.Fatalf("substring fallback failed: %+v", rides)
	}
}

func TestPatchAndDeleteAreDriverOnly(t *testing.T) {
	srv, st := newTestServer(t)
	err := st.CreateRide(context.Background(), &models.Ride{
		ID: "r1", DriverID: "d1", From: "A", To: "B", Date: "2025-01-01", Time: "10:00",
		SeatsTotal: 2, SeatsAvailable: 2, Status: models.RideActive,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	otherTok := token(t, auth.Identity{UserID: "d2", Role: auth.RoleDriver})
	drvTok := token(t, auth.Identity{UserID: "d1", Role: auth.RoleDriver})

	if w := doJSON(t, srv, "PATCH", "/api/v1/rides/r1", otherTok, map[string]any{"price": 99.0}); w.Code != http.StatusForbidden {
		t.Fatalf("patch by non-owner: expected 403, got %d", w.Code)
	}
	if w := doJSON(t, srv, "DELETE", "/api/v1/rides/r1", otherTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("delete by non-owner: expected 403, got %d", w.Code)
	}

	w := doJSON(t, srv, "PATCH", "/api/v1/rides/r1", drvTok, map[string]any{"price": 99.0, "notes": "AC car"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", w.Code, w.Body)
	}
	ride := decodeRide(t, w)
	if ride.Price != 99 || ride.Notes != "AC car" {
		t.Fatalf("patch not applied: %+v", ride)
	}

	if w := doJSON(t, srv, "DELETE", "/api/v1/rides/r1", drvTok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w := doJSON(t, srv, "GET", "/api/v1/rides/r1", drvTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}
