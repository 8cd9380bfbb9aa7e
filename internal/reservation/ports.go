package reservation

import (
	"context"
	"time"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/queue"
)

// ReservationStore persists reservations. Implementations report missing
// rows with repository.ErrNotFound, a lost compare-and-set with
// repository.ErrConflict and a uniqueness violation with
// repository.ErrDuplicate.
type ReservationStore interface {
	// ExistsActive reports whether a non-canceled reservation occupies the slot.
	ExistsActive(ctx context.Context, userID, storeID uint64, at time.Time) (bool, error)
	// Insert atomically re-checks the slot and stores r, returning it with its id.
	Insert(ctx context.Context, r model.Reservation) (model.Reservation, error)
	FindByID(ctx context.Context, id uint64) (model.Reservation, error)
	// UpdateStatus moves id from expected to next only if it is still in expected.
	UpdateStatus(ctx context.Context, id uint64, expected, next model.Status, now time.Time) (model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64, exclude *model.Status) ([]model.Reservation, error)
	ListByStoreOwnerAndStatus(ctx context.Context, ownerID uint64, status model.Status) ([]model.Reservation, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
}

// StoreDirectory resolves store ownership.
type StoreDirectory interface {
	OwnerOf(ctx context.Context, storeID uint64) (uint64, error)
}

// UserDirectory confirms that a user still exists.
type UserDirectory interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
}

// EventPublisher delivers lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }
