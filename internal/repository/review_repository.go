package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

const reviewColumns = `id, COALESCE(reservation_id, 0) AS reservation_id, user_id, store_id, rating, content, created_at, updated_at`

// ReviewRepo persists reviews and keeps stores.avg_rating in step with
// them. Every write locks the store row, changes the review and
// recomputes the average in one transaction.
type ReviewRepo struct {
	db *sqlx.DB
}

func NewReviewRepo(db *sqlx.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// CreateReview stores rv. A second review of the same reservation yields
// ErrDuplicate.
func (r *ReviewRepo) CreateReview(ctx context.Context, rv model.Review) (model.Review, error) {
	var id int64
	err := r.inStoreTx(ctx, rv.StoreID, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO reviews (reservation_id, user_id, store_id, rating, content)
			VALUES (:reservation_id, :user_id, :store_id, :rating, :content)`, rv)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert review: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.Review{}, err
	}
	return r.GetReview(ctx, uint64(id))
}

func (r *ReviewRepo) GetReview(ctx context.Context, id uint64) (model.Review, error) {
	var rv model.Review
	err := r.db.GetContext(ctx, &rv, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Review{}, ErrNotFound
		}
		return model.Review{}, fmt.Errorf("get review %d: %w", id, err)
	}
	return rv, nil
}

// UpdateReview changes the rating and text of review id.
func (r *ReviewRepo) UpdateReview(ctx context.Context, id uint64, rating int, content string) (model.Review, error) {
	current, err := r.GetReview(ctx, id)
	if err != nil {
		return model.Review{}, err
	}
	err = r.inStoreTx(ctx, current.StoreID, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE reviews SET rating = ?, content = ? WHERE id = ?`, rating, content, id); err != nil {
			return fmt.Errorf("update review %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Review{}, err
	}
	return r.GetReview(ctx, id)
}

// DeleteReview removes review id.
func (r *ReviewRepo) DeleteReview(ctx context.Context, id uint64) error {
	current, err := r.GetReview(ctx, id)
	if err != nil {
		return err
	}
	return r.inStoreTx(ctx, current.StoreID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete review %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListReviews returns the reviews of a store, newest first.
func (r *ReviewRepo) ListReviews(ctx context.Context, storeID uint64) ([]model.Review, error) {
	out := []model.Review{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+reviewColumns+` FROM reviews WHERE store_id = ?
		ORDER BY created_at DESC, id DESC`, storeID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of store %d: %w", storeID, err)
	}
	return out, nil
}

// inStoreTx runs fn after locking the store row, then recomputes the
// store's average rating before committing.
func (r *ReviewRepo) inStoreTx(ctx context.Context, storeID uint64, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM stores WHERE id = ? FOR UPDATE`, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock store %d: %w", storeID, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE stores SET avg_rating = (
			SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE store_id = ?
		) WHERE id = ?`, storeID, storeID); err != nil {
		return fmt.Errorf("refresh rating of store %d: %w", storeID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review: %w", err)
	}
	committed = true
	return nil
}
