package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

const reservationColumns = `id, user_id, store_id, reservation_time, phone_number, status, created_at, updated_at`

// maxInsertAttempts bounds retries of the create transaction after InnoDB
// resolved a gap-lock deadlock between two creates of the same slot.
const maxInsertAttempts = 3

// ReservationRepo persists reservations in the `reservations` table.
type ReservationRepo struct {
	db *sqlx.DB
}

func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ExistsActive reports whether a non-canceled reservation holds the slot.
func (r *ReservationRepo) ExistsActive(ctx context.Context, userID, storeID uint64, at time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE user_id = ? AND store_id = ? AND reservation_time = ? AND status <> ?
		)`, userID, storeID, at.UTC(), model.StatusCanceled)
	if err != nil {
		return false, fmt.Errorf("check existing reservation: %w", err)
	}
	return exists, nil
}

// Insert stores res after re-checking its slot inside one transaction.
// The locking read serializes concurrent creates of the same slot, and the
// unique index on (user_id, store_id, reservation_time, active_flag)
// rejects whatever slips past it. Either way the loser gets ErrDuplicate.
func (r *ReservationRepo) Insert(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	var (
		out model.Reservation
		err error
	)
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		out, err = r.insertOnce(ctx, res)
		if err == nil || !isRetryableTx(err) {
			break
		}
	}
	return out, err
}

func (r *ReservationRepo) insertOnce(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var held []uint64
	if err := tx.SelectContext(ctx, &held, `
		SELECT id FROM reservations
		WHERE user_id = ? AND store_id = ? AND reservation_time = ? AND status <> ?
		FOR UPDATE`, res.UserID, res.StoreID, res.ReservationTime.UTC(), model.StatusCanceled); err != nil {
		return model.Reservation{}, fmt.Errorf("lock reservation slot: %w", err)
	}
	if len(held) > 0 {
		return model.Reservation{}, ErrDuplicate
	}

	result, err := tx.NamedExecContext(ctx, `
		INSERT INTO reservations (user_id, store_id, reservation_time, phone_number, status, created_at)
		VALUES (:user_id, :store_id, :reservation_time, :phone_number, :status, :created_at)`, res)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Reservation{}, ErrDuplicate
		}
		return model.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Reservation{}, fmt.Errorf("read reservation id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, fmt.Errorf("commit reservation: %w", err)
	}
	committed = true

	res.ID = uint64(id)
	return res, nil
}

// FindByID loads one reservation or returns ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id uint64) (model.Reservation, error) {
	var res model.Reservation
	err := r.db.GetContext(ctx, &res, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return res, nil
}

// UpdateStatus moves id from expected to next. When no row matched it
// tells a vanished row (ErrNotFound) from a changed one (ErrConflict).
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, expected, next model.Status, now time.Time) (model.Reservation, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`, next, now.UTC(), id, expected)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("update reservation status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Reservation{}, fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = ?)`, id); err != nil {
			return model.Reservation{}, fmt.Errorf("check reservation %d: %w", id, err)
		}
		if !exists {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, ErrConflict
	}
	return r.FindByID(ctx, id)
}

// Delete removes the row permanently.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's reservations, optionally skipping one status.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, exclude *model.Status) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ?`
	args := []any{userID}
	if exclude != nil {
		query += ` AND status <> ?`
		args = append(args, *exclude)
	}
	query += ` ORDER BY reservation_time ASC, id ASC`
	return r.selectAll(ctx, "list reservations by user", query, args...)
}

// ListByStoreOwnerAndStatus returns reservations in status at any store
// owned by ownerID.
func (r *ReservationRepo) ListByStoreOwnerAndStatus(ctx context.Context, ownerID uint64, status model.Status) ([]model.Reservation, error) {
	return r.selectAll(ctx, "list reservations by owner", `
		SELECT r.id, r.user_id, r.store_id, r.reservation_time, r.phone_number, r.status, r.created_at, r.updated_at
		FROM reservations r
		JOIN stores s ON s.id = r.store_id
		WHERE s.owner_id = ? AND r.status = ?
		ORDER BY r.reservation_time ASC, r.id ASC`, ownerID, status)
}

func (r *ReservationRepo) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	return r.selectAll(ctx, "list reservations by status",
		`SELECT `+reservationColumns+` FROM reservations WHERE status = ? ORDER BY reservation_time ASC, id ASC`, status)
}

func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	return r.selectAll(ctx, "list reservations",
		`SELECT `+reservationColumns+` FROM reservations ORDER BY reservation_time ASC, id ASC`)
}

func (r *ReservationRepo) selectAll(ctx context.Context, what, query string, args ...any) ([]model.Reservation, error) {
	out := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}
