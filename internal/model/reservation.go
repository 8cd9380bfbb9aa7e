package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCanceled  Status = "CANCELED"
	StatusCheckedIn Status = "CHECKED_IN"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCanceled, StatusCheckedIn}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus normalizes a user supplied status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", raw)
	}
	return s, nil
}

// Reservation is a customer's booking of a time slot at a store.
//
// Fields:
//
//	ID              – primary key identifier.
//	UserID          – customer who made the reservation.
//	StoreID         – store being reserved.
//	ReservationTime – reserved slot, UTC with second precision.
//	PhoneNumber     – contact number given at booking time.
//	Status          – current lifecycle state.
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last status change (nil until the first one).
type Reservation struct {
	ID              uint64     `db:"id"`               // reservations.id
	UserID          uint64     `db:"user_id"`          // reservations.user_id
	StoreID         uint64     `db:"store_id"`         // reservations.store_id
	ReservationTime time.Time  `db:"reservation_time"` // reservations.reservation_time
	PhoneNumber     string     `db:"phone_number"`     // reservations.phone_number
	Status          Status     `db:"status"`           // reservations.status
	CreatedAt       time.Time  `db:"created_at"`       // reservations.created_at
	UpdatedAt       *time.Time `db:"updated_at"`       // reservations.updated_at (nullable)
}

// Active reports whether the reservation still occupies its
// (user, store, time) slot for duplicate detection.
func (r Reservation) Active() bool {
	return r.Status != StatusCanceled
}
