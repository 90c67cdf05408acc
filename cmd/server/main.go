package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/booking"
	"github.com/JINAY2910/RideMate-sub000/internal/config"
	"github.com/JINAY2910/RideMate-sub000/internal/events"
	"github.com/JINAY2910/RideMate-sub000/internal/geocode"
	httpapi "github.com/JINAY2910/RideMate-sub000/internal/http"
	"github.com/JINAY2910/RideMate-sub000/internal/logging"
	"github.com/JINAY2910/RideMate-sub000/internal/payments"
	"github.com/JINAY2910/RideMate-sub000/internal/relay"
	"github.com/JINAY2910/RideMate-sub000/internal/storage"
	"github.com/JINAY2910/RideMate-sub000/internal/sweeper"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		// no logger yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.NewLogger(os.Stdout, cfg.LogLevel)

	// storage: Postgres when configured, in-memory otherwise
	type rideBookingStore interface {
		storage.RideStore
		storage.BookingStore
	}
	var store rideBookingStore = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN, log)
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		log.Warn("PG_DSN not set, using in-memory store")
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	var geocoder geocode.Resolver = geocode.NewHTTPResolver(cfg.GeocodeEndpoint)
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		geocoder = geocode.NewCachedResolver(geocoder, rc, cfg.GeocodeCacheTTL)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	engine := &booking.Engine{
		Rides:    store,
		Bookings: store,
		Events:   producer,
		Currency: cfg.Currency,
		Log:      log,
	}
	if cfg.StripeKey != "" {
		engine.Payments = payments.NewStripeClient(cfg.StripeKey)
	}

	relaySvc := relay.NewService(verifier, relay.NewRegistry(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sw := &sweeper.Sweeper{Rides: store, Events: producer, Interval: cfg.SweepInterval, Log: log}
	go sw.Run(ctx)

	srv := httpapi.NewServer(httpapi.Options{
		Rides:           store,
		Bookings:        store,
		Engine:          engine,
		Relay:           relaySvc,
		Verifier:        verifier,
		Geocoder:        geocoder,
		Events:          producer,
		Logger:          log,
		ListLimit:       cfg.ListLimit,
		DefaultRadiusKm: cfg.DefaultRadiusKm,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("ridepool API listening", "addr", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// runMigrations applies migrations/001_create_rides.sql when requested.
func runMigrations(dsn string, log *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("migration db open failed", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rides.sql"))
	if err != nil {
		log.Error("migration read failed", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Error("migration exec failed", "error", err)
		return
	}
	log.Info("migration applied", "file", "001_create_rides.sql")
}
