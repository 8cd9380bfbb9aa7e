// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit trail.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// ReservationEventsQueue is the durable queue all lifecycle events go to.
const ReservationEventsQueue = "reservation.events"

// EventType is the routing name of a lifecycle event.
type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventCanceled  EventType = "reservation.canceled"
	EventDeleted   EventType = "reservation.deleted"
	EventConfirmed EventType = "reservation.confirmed"
	EventRejected  EventType = "reservation.rejected"
	EventCheckedIn EventType = "reservation.checked_in"
)

// EventTypeFor maps a target status to the event announcing it.
func EventTypeFor(to model.Status) EventType {
	switch to {
	case model.StatusConfirmed:
		return EventConfirmed
	case model.StatusRejected:
		return EventRejected
	case model.StatusCanceled:
		return EventCanceled
	case model.StatusCheckedIn:
		return EventCheckedIn
	}
	return EventCreated
}

// ReservationEvent is published after every successful lifecycle change.
// It carries enough of the reservation for consumers to log or notify
// without reading the primary database.
type ReservationEvent struct {
	EventID         string    `json:"event_id"`
	Type            EventType `json:"type"`
	ReservationID   uint64    `json:"reservation_id"`
	UserID          uint64    `json:"user_id"`
	StoreID         uint64    `json:"store_id"`
	ActorID         uint64    `json:"actor_id"`
	FromStatus      string    `json:"from_status,omitempty"`
	ToStatus        string    `json:"to_status,omitempty"`
	ReservationTime time.Time `json:"reservation_time"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewReservationEvent stamps a fresh event id onto an event for r.
// from is empty for creations; to is empty for hard deletes.
func NewReservationEvent(typ EventType, r model.Reservation, actorID uint64, from, to model.Status, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:         uuid.NewString(),
		Type:            typ,
		ReservationID:   r.ID,
		UserID:          r.UserID,
		StoreID:         r.StoreID,
		ActorID:         actorID,
		FromStatus:      string(from),
		ToStatus:        string(to),
		ReservationTime: r.ReservationTime.UTC(),
		OccurredAt:      at.UTC(),
	}
}
