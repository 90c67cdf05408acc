package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/observability"
)

// Inbound events: join, leave, locationUpdate. Lat/Lng are pointers so a
// missing field is distinguishable from zero.
type inboundEvent struct {
	Type      string     `json:"type"`
	RideID    string     `json:"rideId"`
	Lat       *float64   `json:"lat,omitempty"`
	Lng       *float64   `json:"lng,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type locationUpdated struct {
	Type       string    `json:"type"`
	RideID     string    `json:"rideId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Timestamp  time.Time `json:"timestamp"`
	DriverID   string    `json:"driverId"`
	DriverName string    `json:"driverName"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Service relays live driver positions to the riders joined to a ride's
// room. It never touches persisted state: delivery is best-effort, and a
// dropped connection is simply pruned from its rooms.
type Service struct {
	Verifier auth.Verifier
	Registry *Registry
	Log      *slog.Logger
	Now      func() time.Time // defaults to time.Now

	upgrader websocket.Upgrader
}

func NewService(verifier auth.Verifier, registry *Registry, log *slog.Logger) *Service {
	return &Service{
		Verifier: verifier,
		Registry: registry,
		Log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// HandleWS authenticates the handshake and runs the connection's read loop.
// The token and the claimed user id ride along as query parameters; any
// mismatch rejects the connection before the upgrade.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claimed := r.URL.Query().Get("user_id")
	identity, err := s.Verifier.Verify(token)
	if err != nil || claimed == "" || claimed != identity.UserID {
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the response
	}
	conn.SetReadLimit(4096)
	sess := NewSession(identity, conn)
	s.Log.Info("relay connected", "user_id", identity.UserID, "role", identity.Role)

	defer func() {
		s.Registry.Drop(sess)
		_ = conn.Close()
		s.Log.Info("relay disconnected", "user_id", identity.UserID)
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handle(sess, data)
	}
}

func (s *Service) handle(sess *Session, data []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(sess, "malformed event")
		return
	}
	if ev.RideID == "" {
		s.sendError(sess, "rideId is required")
		return
	}
	switch ev.Type {
	case "join":
		s.Registry.Join(ev.RideID, sess)
	case "leave":
		s.Registry.Leave(ev.RideID, sess)
	case "locationUpdate":
		s.handleLocation(sess, ev)
	default:
		s.sendError(sess, "unknown event type")
	}
}

func (s *Service) handleLocation(sess *Session, ev inboundEvent) {
	if sess.identity.Role != auth.RoleDriver {
		s.sendError(sess, "only the driver may broadcast location")
		return
	}
	if ev.Lat == nil || ev.Lng == nil {
		s.sendError(sess, "invalid payload: lat and lng are required")
		return
	}
	ts := s.now()
	if ev.Timestamp != nil {
		ts = *ev.Timestamp
	}
	out := locationUpdated{
		Type:       "locationUpdated",
		RideID:     ev.RideID,
		Lat:        *ev.Lat,
		Lng:        *ev.Lng,
		Timestamp:  ts,
		DriverID:   sess.identity.UserID,
		DriverName: sess.identity.Name,
	}
	for _, member := range s.Registry.Members(ev.RideID) {
		if member == sess {
			continue
		}
		if err := member.send(out); err != nil {
			s.Log.Debug("relay send failed", "ride_id", ev.RideID, "user_id", member.identity.UserID, "error", err)
		}
	}
	observability.RelayBroadcasts.Inc()
}

func (s *Service) sendError(sess *Session, msg string) {
	if err := sess.send(errorEvent{Type: "error", Message: msg}); err != nil {
		s.Log.Debug("relay error send failed", "user_id", sess.identity.UserID, "error", err)
	}
}
