package model

import "time"

// Store is a bookable venue owned by an OWNER user.
type Store struct {
	ID        uint64    `db:"id"`         // stores.id
	OwnerID   uint64    `db:"owner_id"`   // stores.owner_id
	Name      string    `db:"name"`       // stores.name
	Latitude  float64   `db:"latitude"`   // stores.latitude
	Longitude float64   `db:"longitude"`  // stores.longitude
	Detail    string    `db:"detail"`     // stores.detail
	AvgRating float64   `db:"avg_rating"` // stores.avg_rating, mean of the store's review ratings
	CreatedAt time.Time `db:"created_at"` // stores.created_at
}

// StoreSummary is a store row as returned by the public listing, with the
// distance from the caller's coordinates when those were supplied.
type StoreSummary struct {
	Store
	DistanceKm *float64 `db:"distance_km"`
}

// StoreSort selects the ordering of the public store listing.
type StoreSort string

const (
	SortByRating   StoreSort = "rating"
	SortByDistance StoreSort = "distance"
	SortByName     StoreSort = "name"
)

// ParseStoreSort maps a query value to a sort key, defaulting to name.
func ParseStoreSort(raw string) StoreSort {
	switch StoreSort(raw) {
	case SortByRating, SortByDistance:
		return StoreSort(raw)
	}
	return SortByName
}
