package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	RideCreated      Type = "ride_created"
	RideDeleted      Type = "ride_deleted"
	RideCompleted    Type = "ride_completed"
	RequestSubmitted Type = "request_submitted"
	RequestApproved  Type = "request_approved"
	RequestRejected  Type = "request_rejected"
)

// RideEvent is the ride-state-changed message published for dashboards and
// mobile consumers. Location updates never flow through here; they stay on
// the relay.
type RideEvent struct {
	Type     Type      `json:"type"`
	RideID   string    `json:"ride_id"`
	DriverID string    `json:"driver_id"`
	RiderID  string    `json:"rider_id,omitempty"`
	Seats    int       `json:"seats,omitempty"`
	At       time.Time `json:"at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, ev RideEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
