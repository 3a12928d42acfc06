// Package queue defines the notification events the scheduling service
// emits and moves them over RabbitMQ.  Delivery is fire-and-forget: no
// booking transaction waits on the broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType doubles as the name of the durable queue the event goes to.
type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	WaitlistPromoted EventType = "waitlist.promoted"
	SessionCancelled EventType = "session.cancelled"
)

// EventTypes lists every queue the service publishes to.
var EventTypes = []EventType{BookingConfirmed, WaitlistPromoted, SessionCancelled}

// Event carries enough information for downstream consumers to notify
// the member without querying the scheduling database.
type Event struct {
	ID         string    `json:"event_id"`
	Type       EventType `json:"type"`
	SessionID  uint64    `json:"session_id"`
	BookingID  uint64    `json:"booking_id,omitempty"`
	MemberID   uint64    `json:"member_id,omitempty"`
	Room       string    `json:"room,omitempty"`
	StartsAt   string    `json:"starts_at,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt string    `json:"occurred_at"`
}

// NewEvent stamps a fresh event id and the occurrence time.
func NewEvent(typ EventType, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

// RoutingKey is the queue name the event is published to on the default
// exchange.
func (e Event) RoutingKey() string { return string(e.Type) }
