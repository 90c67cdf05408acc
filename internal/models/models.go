package models

import (
	"fmt"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Ride is a driver-published trip with a fixed seat inventory. The embedded
// request and participant lists are the source of truth for seat math;
// Version increments on every write and backs the optimistic update loop.
type Ride struct {
	ID             string        `json:"id"`
	DriverID       string        `json:"driver_id"`
	From           string        `json:"from"`
	To             string        `json:"to"`
	Origin         Coord         `json:"origin"`
	Destination    Coord         `json:"destination"`
	Date           string        `json:"date"` // YYYY-MM-DD
	Time           string        `json:"time"` // HH:MM, 24h
	DurationHours  int           `json:"duration_hours"`
	Price          float64       `json:"price"`
	SeatsTotal     int           `json:"seats_total"`
	SeatsAvailable int           `json:"seats_available"`
	Notes          string        `json:"notes,omitempty"`
	Requests       []Request     `json:"requests"`
	Participants   []Participant `json:"participants"`
	Status         RideStatus    `json:"status"`
	Version        int64         `json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Request is a rider's ask to join a ride, embedded in the ride record.
type Request struct {
	ID          string        `json:"id"`
	RiderID     string        `json:"rider_id"`
	RiderName   string        `json:"rider_name"`
	RiderRating float64       `json:"rider_rating"`
	Seats       int           `json:"seats"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Participant is a rider confirmed on a ride after approval.
type Participant struct {
	RiderID     string    `json:"rider_id"`
	RiderName   string    `json:"rider_name"`
	SeatsBooked int       `json:"seats_booked"`
	Status      string    `json:"status"` // always "confirmed"
	JoinedAt    time.Time `json:"joined_at"`
}

const DefaultDurationHours = 2

// Window returns the ride's scheduled start and end instants in UTC.
// End is start plus the ride duration (default 2h when unset).
func (r *Ride) Window() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02 15:04", r.Date+" "+r.Time)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ride %s schedule: %w", r.ID, err)
	}
	hours := r.DurationHours
	if hours <= 0 {
		hours = DefaultDurationHours
	}
	return start, start.Add(time.Duration(hours) * time.Hour), nil
}

// RequestByID returns a pointer into r.Requests, or nil.
func (r *Ride) RequestByID(id string) *Request {
	for i := range r.Requests {
		if r.Requests[i].ID == id {
			return &r.Requests[i]
		}
	}
	return nil
}

// OpenRequestFor returns the rider's non-rejected request, or nil. A rider
// holds at most one such request per ride.
func (r *Ride) OpenRequestFor(riderID string) *Request {
	for i := range r.Requests {
		if r.Requests[i].RiderID == riderID && r.Requests[i].Status != RequestRejected {
			return &r.Requests[i]
		}
	}
	return nil
}

// ParticipantFor returns the rider's participant entry, or nil.
func (r *Ride) ParticipantFor(riderID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].RiderID == riderID {
			return &r.Participants[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to mutate outside the store.
func (r *Ride) Clone() *Ride {
	cp := *r
	cp.Requests = append([]Request(nil), r.Requests...)
	cp.Participants = append([]Participant(nil), r.Participants...)
	return &cp
}

// Booking is the ledger projection of a request: one row per request,
// updated in place as the request's status changes. TotalPrice is fixed
// at submission time and never recomputed.
type Booking struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	RideID     string        `json:"ride_id"`
	RiderID    string        `json:"rider_id"`
	Seats      int           `json:"seats"`
	TotalPrice float64       `json:"total_price"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// BookingSummary joins a booking with display fields from its ride.
type BookingSummary struct {
	Booking
	From     string `json:"from"`
	To       string `json:"to"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	DriverID string `json:"driver_id"`
}
