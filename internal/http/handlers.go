package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/events"
	"github.com/JINAY2910/RideMate-sub000/internal/geocode"
	"github.com/JINAY2910/RideMate-sub000/internal/models"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
)

type createRideRequest struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	Origin        *models.Coord `json:"origin,omitempty"`
	Destination   *models.Coord `json:"destination,omitempty"`
	Date          string        `json:"date"`
	Time          string        `json:"time"`
	DurationHours int           `json:"duration_hours,omitempty"`
	Price         float64       `json:"price"`
	SeatsTotal    int           `json:"seats_total"`
	Notes         string        `json:"notes,omitempty"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		s.writeError(w, auth.ErrAuthFailed)
		return
	}
	if id.Role != auth.RoleDriver {
		s.writeError(w, models.ErrForbidden)
		return
	}
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if req.From == "" || req.To == "" || req.Date == "" || req.Time == "" {
		s.badRequest(w, "from, to, date and time are required")
		return
	}
	if req.SeatsTotal < 1 {
		s.badRequest(w, "seats_total must be at least 1")
		return
	}
	if req.Price < 0 {
		s.badRequest(w, "price must not be negative")
		return
	}

	now := time.Now().UTC()
	ride := &models.Ride{
		ID:             newID(),
		DriverID:       id.UserID,
		From:           req.From,
		To:             req.To,
		Date:           req.Date,
		Time:           req.Time,
		DurationHours:  req.DurationHours,
		Price:          req.Price,
		SeatsTotal:     req.SeatsTotal,
		SeatsAvailable: req.SeatsTotal,
		Notes:          req.Notes,
		Requests:       []models.Request{},
		Participants:   []models.Participant{},
		Status:         models.RideActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, _, err := ride.Window(); err != nil {
		s.badRequest(w, "date must be YYYY-MM-DD and time HH:MM")
		return
	}
	if req.Origin != nil {
		ride.Origin = *req.Origin
	}
	if req.Destination != nil {
		ride.Destination = *req.Destination
	}
	// resolve labels that came without coordinates; best-effort
	if req.Origin == nil {
		if p, ok := s.resolve(r, req.From); ok {
			ride.Origin = models.Coord{Lat: p.Lat, Lng: p.Lng}
		}
	}
	if req.Destination == nil {
		if p, ok := s.resolve(r, req.To); ok {
			ride.Destination = models.Coord{Lat: p.Lat, Lng: p.Lng}
		}
	}

	if err := s.rides.CreateRide(r.Context(), ride); err != nil {
		s.writeError(w, err)
		return
	}
	s.emit(r, events.RideEvent{Type: events.RideCreated, RideID: ride.ID, DriverID: ride.DriverID})
	s.writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.Filter{
		DriverID:   q.Get("driver"),
		RiderID:    q.Get("rider"),
		ActiveOnly: q.Get("active") == "true",
		Date:       q.Get("date"),
		FromText:   q.Get("from"),
		ToText:     q.Get("to"),
		RadiusKm:   s.defaultRadiusKm,
		Limit:      s.listLimit,
	}
	if v := q.Get("radius_km"); v != "" {
		if km, err := strconv.ParseFloat(v, 64); err == nil && km > 0 {
			f.RadiusKm = km
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < s.listLimit {
			f.Limit = n
		}
	}
	// proximity params resolve through the geocoder and fall back to
	// substring matching on the label when resolution fails
	if near := q.Get("near_from"); near != "" {
		if p, ok := s.resolve(r, near); ok {
			f.NearFrom = &models.Coord{Lat: p.Lat, Lng: p.Lng}
		} else {
			f.FromText = near
		}
	}
	if near := q.Get("near_to"); near != "" {
		if p, ok := s.resolve(r, near); ok {
			f.NearTo = &models.Coord{Lat: p.Lat, Lng: p.Lng}
		} else {
			f.ToText = near
		}
	}

	rides, err := s.rides.ListRides(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.rides.GetRide(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

type patchRideRequest struct {
	From          *string  `json:"from,omitempty"`
	To            *string  `json:"to,omitempty"`
	Date          *string  `json:"date,omitempty"`
	Time          *string  `json:"time,omitempty"`
	DurationHours *int     `json:"duration_hours,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

func (s *Server) handlePatchRide(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	var req patchRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	rideID := mux.Vars(r)["id"]
	for attempt := 0; attempt < 5; attempt++ {
		ride, err := s.rides.GetRide(r.Context(), rideID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if ride.DriverID != id.UserID {
			s.writeError(w, models.ErrForbidden)
			return
		}
		applyPatch(ride, req)
		if _, _, err := ride.Window(); err != nil {
			s.badRequest(w, "date must be YYYY-MM-DD and time HH:MM")
			return
		}
		ride.UpdatedAt = time.Now().UTC()
		if err := s.rides.UpdateRide(r.Context(), ride); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, ride)
		return
	}
	s.writeError(w, models.ErrVersionConflict)
}

func applyPatch(ride *models.Ride, req patchRideRequest) {
	if req.From != nil {
		ride.From = *req.From
	}
	if req.To != nil {
		ride.To = *req.To
	}
	if req.Date != nil {
		ride.Date = *req.Date
	}
	if req.Time != nil {
		ride.Time = *req.Time
	}
	if req.DurationHours != nil {
		ride.DurationHours = *req.DurationHours
	}
	if req.Price != nil {
		ride.Price = *req.Price
	}
	if req.Notes != nil {
		ride.Notes = *req.Notes
	}
}

func (s *Server) handleDeleteRide(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	rideID := mux.Vars(r)["id"]
	ride, err := s.rides.GetRide(r.Context(), rideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ride.DriverID != id.UserID {
		s.writeError(w, models.ErrForbidden)
		return
	}
	if err := s.rides.DeleteRide(r.Context(), rideID); err != nil {
		s.writeError(w, err)
		return
	}
	s.emit(r, events.RideEvent{Type: events.RideDeleted, RideID: rideID, DriverID: ride.DriverID})
	w.WriteHeader(http.StatusNoContent)
}

type submitRequestBody struct {
	Seats int `json:"seats"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	ride, err := s.engine.SubmitRequest(r.Context(), mux.Vars(r)["id"], id, body.Seats)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ride)
}

type decisionBody struct {
	Decision string `json:"decision"`
}

func (s *Server) handleDecideRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	var body decisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	decision := models.RequestStatus(body.Decision)
	vars := mux.Vars(r)
	ride, err := s.engine.DecideRequest(r.Context(), vars["id"], vars["requestId"], decision, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	bookings, err := s.bookings.ListBookingsForRider(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) resolve(r *http.Request, query string) (geocode.Place, bool) {
	if s.geocoder == nil {
		return geocode.Place{}, false
	}
	p, err := s.geocoder.Resolve(r.Context(), query)
	if err != nil {
		s.logger.Debug("geocode resolution failed", "query", query, "error", err)
		return geocode.Place{}, false
	}
	return p, true
}

func (s *Server) emit(r *http.Request, ev events.RideEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(r.Context(), ev); err != nil {
		s.logger.Warn("event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps the domain taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, models.ErrRideInactive),
		errors.Is(err, models.ErrInsufficientSeats),
		errors.Is(err, models.ErrDuplicateRequest),
		errors.Is(err, models.ErrVersionConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrInvalidSeats),
		errors.Is(err, models.ErrInvalidDecision):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrAuthFailed):
		status, msg = http.StatusUnauthorized, "auth failed"
	default:
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}
