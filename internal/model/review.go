package model

import "time"

// Review is a customer's rating of a visit. ReservationID is zero once the
// reviewed reservation has been hard deleted; the review and its rating
// stay with the store.
type Review struct {
	ID            uint64    `db:"id"`
	ReservationID uint64    `db:"reservation_id"`
	UserID        uint64    `db:"user_id"`
	StoreID       uint64    `db:"store_id"`
	Rating        int       `db:"rating"`
	Content       string    `db:"content"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether r is on the 1..5 scale.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
