package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/JINAY2910/RideMate-sub000/internal/geo"
	"github.com/JINAY2910/RideMate-sub000/internal/models"
)

// MemoryStore keeps rides and bookings in process memory. It is the default
// backend for local runs and tests; the CAS contract matches PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	rides    map[string]*models.Ride
	bookings map[string]*models.Booking // keyed by request id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[string]*models.Ride),
		bookings: make(map[string]*models.Booking),
	}
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[r.ID]
	if !ok {
		return models.ErrNotFound
	}
	if cur.Version != r.Version {
		return models.ErrVersionConflict
	}
	r.Version++
	m.rides[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) DeleteRide(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.rides, id)
	return nil
}

func (m *MemoryStore) ListRides(ctx context.Context, f Filter) ([]*models.Ride, error) {
	m.mu.RLock()
	matched := make([]*models.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		if rideMatches(r, f) {
			matched = append(matched, r.Clone())
		}
	}
	m.mu.RUnlock()

	if near := nearPoint(f); near != nil {
		matched = orderByDistance(matched, f, *near)
	} else {
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Date != matched[j].Date {
				return matched[i].Date < matched[j].Date
			}
			return matched[i].Time < matched[j].Time
		})
	}
	if lim := f.limit(); len(matched) > lim {
		matched = matched[:lim]
	}
	return matched, nil
}

func rideMatches(r *models.Ride, f Filter) bool {
	if f.DriverID != "" && r.DriverID != f.DriverID {
		return false
	}
	if f.RiderID != "" && r.ParticipantFor(f.RiderID) == nil {
		return false
	}
	if f.ActiveOnly && r.Status != models.RideActive {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.FromText != "" && !strings.Contains(strings.ToLower(r.From), strings.ToLower(f.FromText)) {
		return false
	}
	if f.ToText != "" && !strings.Contains(strings.ToLower(r.To), strings.ToLower(f.ToText)) {
		return false
	}
	return true
}

func nearPoint(f Filter) *models.Coord {
	if f.NearFrom != nil {
		return f.NearFrom
	}
	return f.NearTo
}

// orderByDistance drops rides outside the radius and sorts the rest nearest
// first. The compared endpoint is the origin for NearFrom and the
// destination for NearTo.
func orderByDistance(rides []*models.Ride, f Filter, center models.Coord) []*models.Ride {
	type scored struct {
		r    *models.Ride
		dist float64
	}
	arr := make([]scored, 0, len(rides))
	for _, r := range rides {
		pt := r.Origin
		if f.NearFrom == nil {
			pt = r.Destination
		}
		d := geo.DistanceKm(center, pt)
		if d > f.radiusKm() {
			continue
		}
		arr = append(arr, scored{r, d})
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })
	out := make([]*models.Ride, len(arr))
	for i := range arr {
		out[i] = arr[i].r
	}
	return out
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.RequestID] = &cp
	return nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[requestID]
	if !ok {
		return models.ErrNotFound
	}
	b.Status = status
	return nil
}

func (m *MemoryStore) ListBookingsForRider(ctx context.Context, riderID string) ([]*models.BookingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.BookingSummary{}
	for _, b := range m.bookings {
		if b.RiderID != riderID {
			continue
		}
		s := &models.BookingSummary{Booking: *b}
		if r, ok := m.rides[b.RideID]; ok {
			s.From, s.To, s.Date, s.Time, s.DriverID = r.From, r.To, r.Date, r.Time, r.DriverID
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
