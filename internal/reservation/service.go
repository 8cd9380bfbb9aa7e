// Package reservation owns the reservation lifecycle: creating bookings,
// moving them through the status graph and enforcing who may do what and
// when. Transport and persistence are reached only through the ports in
// ports.go.
package reservation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DoHyunDaniel/reservation-api-project/internal/metrics"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
	"github.com/DoHyunDaniel/reservation-api-project/internal/queue"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
)

// Service is the lifecycle engine. It is safe for concurrent use; all
// per-reservation consistency is delegated to the store's atomic insert
// and compare-and-set update.
type Service struct {
	store   ReservationStore
	stores  StoreDirectory
	users   UserDirectory
	events  EventPublisher
	metrics *metrics.Reservations
	log     *slog.Logger
	now     func() time.Time
	window  time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock. Every operation reads it once.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCheckInWindow overrides DefaultCheckInWindow.
func WithCheckInWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithMetrics(m *metrics.Reservations) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService wires the engine to its ports. All three directories are required.
func NewService(store ReservationStore, stores StoreDirectory, users UserDirectory, opts ...Option) *Service {
	if store == nil || stores == nil || users == nil {
		panic("nil dependency passed to reservation.NewService")
	}
	s := &Service{
		store:  store,
		stores: stores,
		users:  users,
		events: noopPublisher{},
		log:    slog.Default(),
		now:    time.Now,
		window: DefaultCheckInWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the customer supplied part of a new reservation.
type CreateInput struct {
	StoreID         uint64
	ReservationTime time.Time
	PhoneNumber     string
}

// Create books a PENDING reservation for the principal.
func (s *Service) Create(ctx context.Context, p model.Principal, in CreateInput) (_ model.Reservation, err error) {
	const op = "reservation.create"
	defer s.observe(op, &err)
	now := s.now().UTC()

	if err := s.authorize(op, p, policy.ActionCreate, nil, CodeCreateForbidden); err != nil {
		return model.Reservation{}, err
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	switch {
	case in.StoreID == 0:
		return model.Reservation{}, fail(op, CodeStoreRequired)
	case phone == "":
		return model.Reservation{}, fail(op, CodePhoneRequired)
	}
	at := in.ReservationTime.UTC().Truncate(time.Second)
	if !at.After(now) {
		return model.Reservation{}, fail(op, CodeTimeNotInFuture)
	}

	ok, err := s.users.Exists(ctx, p.UserID)
	if err != nil {
		return model.Reservation{}, internal(op, err)
	}
	if !ok {
		return model.Reservation{}, fail(op, CodeUserNotFound)
	}
	if _, err := s.stores.OwnerOf(ctx, in.StoreID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, fail(op, CodeStoreNotFound)
		}
		return model.Reservation{}, internal(op, err)
	}

	// Cheap early rejection. Insert repeats the check atomically.
	taken, err := s.store.ExistsActive(ctx, p.UserID, in.StoreID, at)
	if err != nil {
		return model.Reservation{}, internal(op, err)
	}
	if taken {
		return model.Reservation{}, fail(op, CodeDuplicateReservation)
	}

	saved, err := s.store.Insert(ctx, model.Reservation{
		UserID:          p.UserID,
		StoreID:         in.StoreID,
		ReservationTime: at,
		PhoneNumber:     phone,
		Status:          model.StatusPending,
		CreatedAt:       now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Reservation{}, fail(op, CodeDuplicateReservation)
		}
		return model.Reservation{}, internal(op, err)
	}

	s.record(ctx, queue.EventCreated, saved, p.UserID, "", model.StatusPending, now)
	return saved, nil
}

// Cancel soft-deletes the principal's own reservation.
func (s *Service) Cancel(ctx context.Context, p model.Principal, id uint64) (_ model.Reservation, err error) {
	const op = "reservation.cancel"
	defer s.observe(op, &err)
	now := s.now().UTC()

	r, err := s.load(ctx, op, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := s.authorize(op, p, policy.ActionCancel, &r.UserID, CodeCancelForbidden); err != nil {
		return model.Reservation{}, err
	}
	return s.transition(ctx, op, p, r, model.StatusCanceled, ActorCustomer, now)
}

// Delete removes the principal's own reservation regardless of status and
// returns the id that was removed.
func (s *Service) Delete(ctx context.Context, p model.Principal, id uint64) (_ uint64, err error) {
	const op = "reservation.delete"
	defer s.observe(op, &err)
	now := s.now().UTC()

	r, err := s.load(ctx, op, id)
	if err != nil {
		return 0, err
	}
	if err := s.authorize(op, p, policy.ActionHardDelete, &r.UserID, CodeDeleteForbidden); err != nil {
		return 0, err
	}
	if err := s.store.Delete(ctx, r.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fail(op, CodeReservationNotFound)
		}
		return 0, internal(op, err)
	}

	s.record(ctx, queue.EventDeleted, r, p.UserID, r.Status, "", now)
	return r.ID, nil
}

// Decide confirms or rejects a PENDING reservation at a store the
// principal owns.
func (s *Service) Decide(ctx context.Context, p model.Principal, id uint64, next model.Status) (_ model.Reservation, err error) {
	const op = "reservation.decide"
	defer s.observe(op, &err)
	now := s.now().UTC()

	// Role is checked before the lookup so non-owners learn nothing about ids.
	if err := s.authorize(op, p, policy.ActionConfirmOrReject, nil, CodeDecisionForbidden); err != nil {
		return model.Reservation{}, err
	}
	if next != model.StatusConfirmed && next != model.StatusRejected {
		return model.Reservation{}, fail(op, CodeInvalidDecision)
	}

	r, err := s.load(ctx, op, id)
	if err != nil {
		return model.Reservation{}, err
	}
	ownerID, err := s.stores.OwnerOf(ctx, r.StoreID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, fail(op, CodeStoreNotFound)
		}
		return model.Reservation{}, internal(op, err)
	}
	if err := s.authorize(op, p, policy.ActionConfirmOrReject, &ownerID, CodeDecisionForbidden); err != nil {
		return model.Reservation{}, err
	}
	return s.transition(ctx, op, p, r, next, ActorOwner, now)
}

// CheckIn marks the principal's reservation as visited. It is only
// accepted within the check-in window around the reservation time.
func (s *Service) CheckIn(ctx context.Context, p model.Principal, id uint64) (err error) {
	const op = "reservation.check_in"
	defer s.observe(op, &err)
	now := s.now().UTC()

	r, err := s.load(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.authorize(op, p, policy.ActionCheckIn, &r.UserID, CodeCheckInForbidden); err != nil {
		return err
	}
	switch r.Status {
	case model.StatusCheckedIn:
		return fail(op, CodeAlreadyCheckedIn)
	case model.StatusRejected, model.StatusCanceled:
		return fail(op, CodeInvalidStatus)
	}
	if !WithinCheckInWindow(r.ReservationTime, now, s.window) {
		return fail(op, CodeNotInCheckInWindow)
	}
	_, err = s.transition(ctx, op, p, r, model.StatusCheckedIn, ActorCustomer, now)
	return err
}

// ListForCustomer returns the principal's reservations except canceled ones.
func (s *Service) ListForCustomer(ctx context.Context, p model.Principal) (_ []model.Reservation, err error) {
	const op = "reservation.list_own"
	defer s.observe(op, &err)

	if err := s.authorize(op, p, policy.ActionListOwn, nil, CodeListForbidden); err != nil {
		return nil, err
	}
	canceled := model.StatusCanceled
	return s.list(op, func() ([]model.Reservation, error) {
		return s.store.ListByUser(ctx, p.UserID, &canceled)
	})
}

// ListPendingForOwner returns PENDING reservations at stores owned by
// ownerID. Callers authorize the request first.
func (s *Service) ListPendingForOwner(ctx context.Context, ownerID uint64) ([]model.Reservation, error) {
	return s.ListForOwnerByStatus(ctx, ownerID, model.StatusPending)
}

// ListForOwnerByStatus returns reservations in status at stores owned by
// ownerID. Callers authorize the request first.
func (s *Service) ListForOwnerByStatus(ctx context.Context, ownerID uint64, status model.Status) (_ []model.Reservation, err error) {
	const op = "reservation.list_owner"
	defer s.observe(op, &err)

	if !status.Valid() {
		return nil, fail(op, CodeUnknownStatus)
	}
	return s.list(op, func() ([]model.Reservation, error) {
		return s.store.ListByStoreOwnerAndStatus(ctx, ownerID, status)
	})
}

// ListAllByStatus returns every reservation in status. Admin only; callers
// authorize the request first.
func (s *Service) ListAllByStatus(ctx context.Context, status model.Status) (_ []model.Reservation, err error) {
	const op = "reservation.list_status"
	defer s.observe(op, &err)

	if !status.Valid() {
		return nil, fail(op, CodeUnknownStatus)
	}
	return s.list(op, func() ([]model.Reservation, error) {
		return s.store.ListByStatus(ctx, status)
	})
}

// ListAll returns every reservation. Admin only; callers authorize first.
func (s *Service) ListAll(ctx context.Context) (_ []model.Reservation, err error) {
	const op = "reservation.list_all"
	defer s.observe(op, &err)

	return s.list(op, func() ([]model.Reservation, error) {
		return s.store.ListAll(ctx)
	})
}

func (s *Service) list(op string, fetch func() ([]model.Reservation, error)) ([]model.Reservation, error) {
	rs, err := fetch()
	if err != nil {
		return nil, internal(op, err)
	}
	if rs == nil {
		rs = []model.Reservation{}
	}
	return rs, nil
}

func (s *Service) load(ctx context.Context, op string, id uint64) (model.Reservation, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, fail(op, CodeReservationNotFound)
		}
		return model.Reservation{}, internal(op, err)
	}
	return r, nil
}

// authorize runs the policy and turns a denial into a typed error. Denials
// of authenticated callers are logged for audit.
func (s *Service) authorize(op string, p model.Principal, action policy.Action, ownerID *uint64, code Code) error {
	d := policy.Decide(p, action, ownerID)
	if d.Allowed {
		return nil
	}
	if d.Reason == policy.ReasonUnauthenticated {
		return &Error{Kind: KindAuthentication, Code: CodeInvalidToken, Op: op}
	}
	s.log.Warn("reservation access denied",
		slog.String("op", op),
		slog.Uint64("user_id", p.UserID),
		slog.String("role", string(p.Role)),
		slog.String("reason", string(d.Reason)),
	)
	return fail(op, code)
}

// transition validates r.Status -> to against the graph and persists it
// with a compare-and-set on the status that was read.
func (s *Service) transition(ctx context.Context, op string, p model.Principal, r model.Reservation, to model.Status, actor Actor, now time.Time) (model.Reservation, error) {
	if err := CanTransition(r.Status, to, actor); err != nil {
		return model.Reservation{}, &Error{Kind: KindInvalidStateTransition, Code: CodeInvalidStatus, Op: op, Err: err}
	}
	updated, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return model.Reservation{}, fail(op, CodeConcurrentUpdate)
		case errors.Is(err, repository.ErrNotFound):
			return model.Reservation{}, fail(op, CodeReservationNotFound)
		}
		return model.Reservation{}, internal(op, err)
	}
	s.record(ctx, queue.EventTypeFor(to), updated, p.UserID, r.Status, to, now)
	return updated, nil
}

// record counts a completed change and announces it. Publishing is best
// effort: the change is already committed.
func (s *Service) record(ctx context.Context, typ queue.EventType, r model.Reservation, actorID uint64, from, to model.Status, now time.Time) {
	s.metrics.Transition(from, to)
	ev := queue.NewReservationEvent(typ, r, actorID, from, to, now)
	err := s.events.Publish(ctx, ev)
	s.metrics.Published(err)
	if err != nil {
		s.log.Warn("publish reservation event failed",
			slog.String("type", string(typ)),
			slog.Uint64("reservation_id", r.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) observe(op string, err *error) {
	if *err != nil {
		s.metrics.Failure(op, string(KindOf(*err)))
	}
}
