package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/JINAY2910/RideMate-sub000/internal/models"
)

// PostgresStore persists rides and bookings. The embedded request and
// participant lists live in JSONB columns; the version column carries the
// CAS guard (UPDATE ... WHERE id AND version).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

const rideCols = `id, driver_id, from_label, to_label, origin_lat, origin_lng, dest_lat, dest_lng,
	date, time, duration_hours, price, seats_total, seats_available, notes,
	requests, participants, status, version, created_at, updated_at`

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	reqs, parts, err := marshalLists(r)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO rides(`+rideCols+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		r.ID, r.DriverID, r.From, r.To, r.Origin.Lat, r.Origin.Lng, r.Destination.Lat, r.Destination.Lng,
		r.Date, r.Time, r.DurationHours, r.Price, r.SeatsTotal, r.SeatsAvailable, r.Notes,
		reqs, parts, r.Status, r.Version, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideCols+` FROM rides WHERE id=$1`, id)
	return scanRide(row)
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	reqs, parts, err := marshalLists(r)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET
		from_label=$1, to_label=$2, origin_lat=$3, origin_lng=$4, dest_lat=$5, dest_lng=$6,
		date=$7, time=$8, duration_hours=$9, price=$10, seats_total=$11, seats_available=$12,
		notes=$13, requests=$14, participants=$15, status=$16, version=version+1, updated_at=$17
		WHERE id=$18 AND version=$19`,
		r.From, r.To, r.Origin.Lat, r.Origin.Lng, r.Destination.Lat, r.Destination.Lng,
		r.Date, r.Time, r.DurationHours, r.Price, r.SeatsTotal, r.SeatsAvailable,
		r.Notes, reqs, parts, r.Status, time.Now().UTC(), r.ID, r.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish a lost race from a missing ride
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rides WHERE id=$1)`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrVersionConflict
	}
	r.Version++
	return nil
}

func (p *PostgresStore) DeleteRide(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListRides pushes the scalar filters into SQL and leaves proximity scoring
// to Go: candidate rows are fetched (already capped by schedule order) and
// then distance-filtered with the same haversine the memory store uses.
func (p *PostgresStore) ListRides(ctx context.Context, f Filter) ([]*models.Ride, error) {
	q := `SELECT ` + rideCols + ` FROM rides WHERE 1=1`
	args := []any{}
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	if f.DriverID != "" {
		q += ` AND driver_id=` + arg(f.DriverID)
	}
	if f.RiderID != "" {
		q += ` AND participants @> ` + arg(fmt.Sprintf(`[{"rider_id":%q}]`, f.RiderID))
	}
	if f.ActiveOnly {
		q += ` AND status=` + arg(string(models.RideActive))
	}
	if f.Date != "" {
		q += ` AND date=` + arg(f.Date)
	}
	if f.FromText != "" {
		q += ` AND from_label ILIKE ` + arg("%"+f.FromText+"%")
	}
	if f.ToText != "" {
		q += ` AND to_label ILIKE ` + arg("%"+f.ToText+"%")
	}
	q += ` ORDER BY date, time`
	if nearPoint(f) == nil {
		q += ` LIMIT ` + arg(f.limit())
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Ride{}
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if near := nearPoint(f); near != nil {
		out = orderByDistance(out, f, *near)
		if lim := f.limit(); len(out) > lim {
			out = out[:lim]
		}
	}
	return out, nil
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO bookings(id, request_id, ride_id, rider_id, seats, total_price, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.RequestID, b.RideID, b.RiderID, b.Seats, b.TotalPrice, b.Status, b.CreatedAt)
	return err
}

func (p *PostgresStore) UpdateBookingStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE bookings SET status=$1 WHERE request_id=$2`, status, requestID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListBookingsForRider(ctx context.Context, riderID string) ([]*models.BookingSummary, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT b.id, b.request_id, b.ride_id, b.rider_id, b.seats, b.total_price, b.status, b.created_at,
			COALESCE(r.from_label,''), COALESCE(r.to_label,''), COALESCE(r.date,''), COALESCE(r.time,''), COALESCE(r.driver_id,'')
		FROM bookings b LEFT JOIN rides r ON r.id = b.ride_id
		WHERE b.rider_id=$1 ORDER BY b.created_at DESC`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.BookingSummary{}
	for rows.Next() {
		s := &models.BookingSummary{}
		if err := rows.Scan(&s.ID, &s.RequestID, &s.RideID, &s.RiderID, &s.Seats, &s.TotalPrice, &s.Status, &s.CreatedAt,
			&s.From, &s.To, &s.Date, &s.Time, &s.DriverID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalLists(r *models.Ride) ([]byte, []byte, error) {
	reqs, err := json.Marshal(r.Requests)
	if err != nil {
		return nil, nil, err
	}
	parts, err := json.Marshal(r.Participants)
	if err != nil {
		return nil, nil, err
	}
	return reqs, parts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	r := &models.Ride{}
	var reqs, parts []byte
	err := row.Scan(&r.ID, &r.DriverID, &r.From, &r.To, &r.Origin.Lat, &r.Origin.Lng, &r.Destination.Lat, &r.Destination.Lng,
		&r.Date, &r.Time, &r.DurationHours, &r.Price, &r.SeatsTotal, &r.SeatsAvailable, &r.Notes,
		&reqs, &parts, &r.Status, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reqs, &r.Requests); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(parts, &r.Participants); err != nil {
		return nil, err
	}
	return r, nil
}
