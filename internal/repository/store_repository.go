package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// StoreRepo reads and writes the `stores` table.
type StoreRepo struct {
	db *sqlx.DB
}

func NewStoreRepo(db *sqlx.DB) *StoreRepo { return &StoreRepo{db: db} }

// Create registers a store and returns it with its id.
func (r *StoreRepo) Create(ctx context.Context, st model.Store) (model.Store, error) {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO stores (owner_id, name, latitude, longitude, detail)
		VALUES (:owner_id, :name, :latitude, :longitude, :detail)`, st)
	if err != nil {
		return model.Store{}, fmt.Errorf("insert store: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Store{}, fmt.Errorf("read store id: %w", err)
	}
	return r.GetByID(ctx, uint64(id))
}

func (r *StoreRepo) GetByID(ctx context.Context, id uint64) (model.Store, error) {
	var st model.Store
	err := r.db.GetContext(ctx, &st, `
		SELECT id, owner_id, name, latitude, longitude, detail, avg_rating, created_at
		FROM stores WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Store{}, ErrNotFound
		}
		return model.Store{}, fmt.Errorf("get store %d: %w", id, err)
	}
	return st, nil
}

// Update rewrites the editable fields of st (name, coordinates, detail).
func (r *StoreRepo) Update(ctx context.Context, st model.Store) (model.Store, error) {
	if _, err := r.db.NamedExecContext(ctx, `
		UPDATE stores SET name = :name, latitude = :latitude, longitude = :longitude, detail = :detail
		WHERE id = :id`, st); err != nil {
		return model.Store{}, fmt.Errorf("update store %d: %w", st.ID, err)
	}
	// RowsAffected is 0 for an unchanged row, so existence is read back.
	return r.GetByID(ctx, st.ID)
}

// Delete removes a store and its reviews. Stores that still have
// reservations are kept and ErrConflict is returned.
func (r *StoreRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id)
	if err != nil {
		if isRowReferenced(err) {
			return ErrConflict
		}
		return fmt.Errorf("delete store %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete store %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnerOf returns the user id owning storeID.
func (r *StoreRepo) OwnerOf(ctx context.Context, storeID uint64) (uint64, error) {
	var owner uint64
	err := r.db.GetContext(ctx, &owner, `SELECT owner_id FROM stores WHERE id = ?`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get store owner %d: %w", storeID, err)
	}
	return owner, nil
}

// List returns every store ordered by sortBy. With both coordinates the
// haversine distance is computed in SQL; distance sorting without them
// falls back to name order.
func (r *StoreRepo) List(ctx context.Context, sortBy model.StoreSort, lat, lng *float64) ([]model.StoreSummary, error) {
	distance := `NULL`
	var args []any
	if lat != nil && lng != nil {
		distance = `(? * ACOS(LEAST(1, COS(RADIANS(?)) * COS(RADIANS(latitude)) *
			COS(RADIANS(longitude) - RADIANS(?)) + SIN(RADIANS(?)) * SIN(RADIANS(latitude)))))`
		args = append(args, earthRadiusKm, *lat, *lng, *lat)
	}

	order := `name ASC, id ASC`
	switch {
	case sortBy == model.SortByRating:
		order = `avg_rating DESC, name ASC, id ASC`
	case sortBy == model.SortByDistance && lat != nil && lng != nil:
		order = `distance_km ASC, name ASC, id ASC`
	}

	out := []model.StoreSummary{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, name, latitude, longitude, detail, avg_rating, created_at,
		       `+distance+` AS distance_km
		FROM stores
		ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out, nil
}
