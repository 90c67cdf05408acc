package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/booking"
	"github.com/JINAY2910/RideMate-sub000/internal/events"
	"github.com/JINAY2910/RideMate-sub000/internal/geocode"
	"github.com/JINAY2910/RideMate-sub000/internal/relay"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
)

// Options carries the server's collaborators. Geocoder and Events are
// optional; everything else is required.
type Options struct {
	Rides           storage.RideStore
	Bookings        storage.BookingStore
	Engine          *booking.Engine
	Relay           *relay.Service
	Verifier        auth.Verifier
	Geocoder        geocode.Resolver
	Events          *events.Producer
	Logger          *slog.Logger
	ListLimit       int
	DefaultRadiusKm float64
}

type Server struct {
	rides    storage.RideStore
	bookings storage.BookingStore
	engine   *booking.Engine
	relay    *relay.Service
	verifier auth.Verifier
	geocoder geocode.Resolver
	events   *events.Producer
	logger   *slog.Logger

	listLimit       int
	defaultRadiusKm float64

	mux *mux.Router
}

func NewServer(opts Options) *Server {
	s := &Server{
		rides:           opts.Rides,
		bookings:        opts.Bookings,
		engine:          opts.Engine,
		relay:           opts.Relay,
		verifier:        opts.Verifier,
		geocoder:        opts.Geocoder,
		events:          opts.Events,
		logger:          opts.Logger,
		listLimit:       opts.ListLimit,
		defaultRadiusKm: opts.DefaultRadiusKm,
		mux:             mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.listLimit <= 0 {
		s.listLimit = storage.DefaultListLimit
	}
	if s.defaultRadiusKm <= 0 {
		s.defaultRadiusKm = storage.DefaultRadiusKm
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	api.HandleFunc("/rides", s.handleListRides).Methods("GET")
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods("GET")
	api.HandleFunc("/rides/{id}", s.handlePatchRide).Methods("PATCH")
	api.HandleFunc("/rides/{id}", s.handleDeleteRide).Methods("DELETE")
	api.HandleFunc("/rides/{id}/requests", s.handleSubmitRequest).Methods("POST")
	api.HandleFunc("/rides/{id}/requests/{requestId}/decision", s.handleDecideRequest).Methods("POST")
	api.HandleFunc("/bookings", s.handleListBookings).Methods("GET")

	// the relay does its own handshake auth
	s.mux.HandleFunc("/ws", s.relay.HandleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
