package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "seat_requests_total", Help: "Seat requests submitted"})
	RequestsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepool", Name: "request_decisions_total", Help: "Request decisions by outcome"},
		[]string{"decision"},
	)
	SeatsBooked     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "seats_booked_total", Help: "Seats booked through approvals"})
	RidesRetired    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "rides_retired_total", Help: "Rides retired by the expiry sweeper"})
	RelayBroadcasts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "relay_broadcasts_total", Help: "Location events fanned out to room members"})
	RelayRooms      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridepool", Name: "relay_rooms", Help: "Live ride rooms with at least one member"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridepool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
