package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/queue"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository/memstore"
)

var (
	customer7  = model.Principal{UserID: 7, Role: model.RoleCustomer}
	customer9  = model.Principal{UserID: 9, Role: model.RoleCustomer}
	owner3     = model.Principal{UserID: 3, Role: model.RoleOwner}
	owner4     = model.Principal{UserID: 4, Role: model.RoleOwner}
	admin1     = model.Principal{UserID: 1, Role: model.RoleAdmin}
	slot       = time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)
	bookedAt   = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	testPhone  = "010-0000-0000"
	storeID    = uint64(42)
	otherStore = uint64(43)
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	res    *memstore.Reservations
	clock  *testClock
	events *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	users := memstore.NewUsers()
	for _, u := range []model.User{
		{ID: 1, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true},
		{ID: 3, Email: "owner@example.com", Role: model.RoleOwner, IsActive: true},
		{ID: 4, Email: "owner2@example.com", Role: model.RoleOwner, IsActive: true},
		{ID: 7, Email: "seven@example.com", Role: model.RoleCustomer, IsActive: true},
		{ID: 9, Email: "nine@example.com", Role: model.RoleCustomer, IsActive: true},
	} {
		users.Put(u)
	}
	stores := memstore.NewStores()
	stores.Put(model.Store{ID: storeID, OwnerID: 3, Name: "Seoul Kitchen"})
	stores.Put(model.Store{ID: otherStore, OwnerID: 4, Name: "Busan Grill"})

	f := &fixture{
		res:    memstore.NewReservations(stores),
		clock:  &testClock{t: bookedAt},
		events: &recordingPublisher{},
	}
	all := append([]Option{WithClock(f.clock.Now), WithPublisher(f.events)}, opts...)
	f.svc = NewService(f.res, stores, users, all...)
	return f
}

func (f *fixture) book(t *testing.T, p model.Principal, store uint64, at time.Time) model.Reservation {
	t.Helper()
	f.clock.Set(bookedAt)
	r, err := f.svc.Create(context.Background(), p, CreateInput{StoreID: store, ReservationTime: at, PhoneNumber: testPhone})
	require.NoError(t, err)
	return r
}

func requireKind(t *testing.T, err error, k Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, k, KindOf(err), "unexpected error: %v", err)
}

func requireCode(t *testing.T, err error, c Code) {
	t.Helper()
	var e *Error
	require.True(t, errors.As(err, &e), "not a reservation error: %v", err)
	require.Equal(t, c, e.Code)
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: " " + testPhone + " "})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, uint64(7), r.UserID)
	assert.Equal(t, storeID, r.StoreID)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, testPhone, r.PhoneNumber)
	assert.True(t, r.ReservationTime.Equal(slot))
	assert.True(t, r.CreatedAt.Equal(bookedAt))
	assert.Nil(t, r.UpdatedAt)
	assert.Equal(t, []queue.EventType{queue.EventCreated}, f.events.types())

	_, err = f.svc.Create(ctx, customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
	requireKind(t, err, KindDuplicateBooking)
	requireCode(t, err, CodeDuplicateReservation)

	// Another customer, store or time is a different slot.
	_, err = f.svc.Create(ctx, customer9, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, customer7, CreateInput{StoreID: otherStore, ReservationTime: slot, PhoneNumber: testPhone})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, customer7, CreateInput{StoreID: storeID, ReservationTime: slot.Add(time.Hour), PhoneNumber: testPhone})
	require.NoError(t, err)
}

func TestCreateAfterCancelReusesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)

	_, err := f.svc.Cancel(ctx, customer7, r.ID)
	require.NoError(t, err)

	again, err := f.svc.Create(ctx, customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
	require.NoError(t, err)
	require.NotEqual(t, r.ID, again.ID)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		p    model.Principal
		in   CreateInput
		kind Kind
		code Code
	}{
		{"anonymous", model.Principal{}, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone}, KindAuthentication, CodeInvalidToken},
		{"time equals now", customer7, CreateInput{StoreID: storeID, ReservationTime: bookedAt, PhoneNumber: testPhone}, KindInvalidArgument, CodeTimeNotInFuture},
		{"time in past", customer7, CreateInput{StoreID: storeID, ReservationTime: bookedAt.Add(-time.Minute), PhoneNumber: testPhone}, KindInvalidArgument, CodeTimeNotInFuture},
		{"blank phone", customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: "   "}, KindInvalidArgument, CodePhoneRequired},
		{"missing store id", customer7, CreateInput{ReservationTime: slot, PhoneNumber: testPhone}, KindInvalidArgument, CodeStoreRequired},
		{"unknown store", customer7, CreateInput{StoreID: 999, ReservationTime: slot, PhoneNumber: testPhone}, KindNotFound, CodeStoreNotFound},
		{"unknown user", model.Principal{UserID: 77, Role: model.RoleCustomer}, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone}, KindNotFound, CodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.p, tt.in)
			requireKind(t, err, tt.kind)
			requireCode(t, err, tt.code)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestConcurrentCreateHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	const n = 32

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Create(context.Background(), customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case KindOf(err) == KindDuplicateBooking:
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, n-1, duplicates)
	all, err := f.res.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)

	_, err := f.svc.Decide(ctx, owner4, r.ID, model.StatusConfirmed)
	requireKind(t, err, KindUnauthorized)
	requireCode(t, err, CodeDecisionForbidden)

	_, err = f.svc.Decide(ctx, customer7, r.ID, model.StatusConfirmed)
	requireKind(t, err, KindUnauthorized)

	_, err = f.svc.Decide(ctx, owner3, r.ID, model.StatusCanceled)
	requireKind(t, err, KindInvalidArgument)
	requireCode(t, err, CodeInvalidDecision)

	_, err = f.svc.Decide(ctx, owner3, 404, model.StatusConfirmed)
	requireKind(t, err, KindNotFound)

	f.clock.Set(bookedAt.Add(time.Hour))
	confirmed, err := f.svc.Decide(ctx, owner3, r.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.UpdatedAt)
	assert.True(t, confirmed.UpdatedAt.Equal(bookedAt.Add(time.Hour)))

	_, err = f.svc.Decide(ctx, owner3, r.ID, model.StatusConfirmed)
	requireKind(t, err, KindInvalidStateTransition)
	_, err = f.svc.Decide(ctx, owner3, r.ID, model.StatusRejected)
	requireKind(t, err, KindInvalidStateTransition)

	assert.Equal(t, []queue.EventType{queue.EventCreated, queue.EventConfirmed}, f.events.types())
}

func TestRejectThenCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)

	rejected, err := f.svc.Decide(ctx, owner3, r.ID, model.StatusRejected)
	require.NoError(t, err)
	require.Equal(t, model.StatusRejected, rejected.Status)

	f.clock.Set(slot)
	err = f.svc.CheckIn(ctx, customer7, r.ID)
	requireKind(t, err, KindInvalidStateTransition)

	canceled, err := f.svc.Cancel(ctx, customer7, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCanceled, canceled.Status)
}

func TestCheckInScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)
	_, err := f.svc.Decide(ctx, owner3, r.ID, model.StatusConfirmed)
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, 1, 1, 17, 45, 0, 0, time.UTC))
	err = f.svc.CheckIn(ctx, customer7, r.ID)
	requireKind(t, err, KindOutsideCheckInWindow)

	arrived := time.Date(2025, 1, 1, 17, 51, 0, 0, time.UTC)
	f.clock.Set(arrived)
	require.NoError(t, f.svc.CheckIn(ctx, customer7, r.ID))

	got, err := f.res.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, got.Status)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(arrived))

	err = f.svc.CheckIn(ctx, customer7, r.ID)
	requireKind(t, err, KindAlreadyCheckedIn)

	_, err = f.svc.Cancel(ctx, customer7, r.ID)
	requireKind(t, err, KindInvalidStateTransition)
}

func TestCheckInWindowBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"ten minutes early", -10 * time.Minute, true},
		{"ten minutes late", 10 * time.Minute, true},
		{"on time", 0, true},
		{"one second too early", -10*time.Minute - time.Second, false},
		{"one second too late", 10*time.Minute + time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.book(t, customer7, storeID, slot)
			f.clock.Set(slot.Add(tt.offset))
			err := f.svc.CheckIn(context.Background(), customer7, r.ID)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			requireKind(t, err, KindOutsideCheckInWindow)
			requireCode(t, err, CodeNotInCheckInWindow)
		})
	}
}

func TestCheckInCustomWindow(t *testing.T) {
	f := newFixture(t, WithCheckInWindow(30*time.Minute))
	r := f.book(t, customer7, storeID, slot)
	f.clock.Set(slot.Add(-25 * time.Minute))
	require.NoError(t, f.svc.CheckIn(context.Background(), customer7, r.ID))
}

func TestCheckInRequiresHolder(t *testing.T) {
	f := newFixture(t)
	r := f.book(t, customer7, storeID, slot)
	f.clock.Set(slot)

	err := f.svc.CheckIn(context.Background(), customer9, r.ID)
	requireKind(t, err, KindUnauthorized)
	requireCode(t, err, CodeCheckInForbidden)

	err = f.svc.CheckIn(context.Background(), owner3, r.ID)
	requireKind(t, err, KindUnauthorized)
}

func TestCancelOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)

	_, err := f.svc.Cancel(ctx, customer9, r.ID)
	requireKind(t, err, KindUnauthorized)
	requireCode(t, err, CodeCancelForbidden)

	got, err := f.res.FindByID(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)

	canceled, err := f.svc.Cancel(ctx, customer7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	_, err = f.svc.Cancel(ctx, customer7, r.ID)
	requireKind(t, err, KindInvalidStateTransition)

	_, err = f.svc.Cancel(ctx, customer7, 404)
	requireKind(t, err, KindNotFound)
	requireCode(t, err, CodeReservationNotFound)
}

func TestCancelConfirmedReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)
	_, err := f.svc.Decide(ctx, owner3, r.ID, model.StatusConfirmed)
	require.NoError(t, err)

	// Cancellation has no time restriction, even well past the slot.
	f.clock.Set(slot.Add(48 * time.Hour))
	canceled, err := f.svc.Cancel(ctx, customer7, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCanceled, canceled.Status)
}

func TestDeleteOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)

	_, err := f.svc.Delete(ctx, customer9, r.ID)
	requireKind(t, err, KindUnauthorized)
	requireCode(t, err, CodeDeleteForbidden)
	assert.NotEqual(t, Message(CodeDeleteForbidden), Message(CodeCancelForbidden))

	id, err := f.svc.Delete(ctx, customer7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, id)

	_, err = f.res.FindByID(ctx, r.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.Delete(ctx, customer7, r.ID)
	requireKind(t, err, KindNotFound)
	assert.Equal(t, []queue.EventType{queue.EventCreated, queue.EventDeleted}, f.events.types())
}

func TestDeleteFromTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, customer7, storeID, slot)
	f.clock.Set(slot)
	require.NoError(t, f.svc.CheckIn(ctx, customer7, r.ID))

	_, err := f.svc.Delete(ctx, customer7, r.ID)
	require.NoError(t, err)
}

func TestListForCustomerExcludesCanceled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.book(t, customer7, storeID, slot)
	dropped := f.book(t, customer7, storeID, slot.Add(time.Hour))
	f.book(t, customer9, storeID, slot)

	_, err := f.svc.Cancel(ctx, customer7, dropped.ID)
	require.NoError(t, err)

	list, err := f.svc.ListForCustomer(ctx, customer7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	_, err = f.svc.ListForCustomer(ctx, model.Principal{})
	requireKind(t, err, KindAuthentication)
}

func TestOwnerAndAdminListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, customer7, storeID, slot)
	b := f.book(t, customer9, storeID, slot.Add(time.Hour))
	c := f.book(t, customer7, otherStore, slot)
	_, err := f.svc.Decide(ctx, owner3, b.ID, model.StatusConfirmed)
	require.NoError(t, err)

	pending, err := f.svc.ListPendingForOwner(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	confirmed, err := f.svc.ListForOwnerByStatus(ctx, 3, model.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, b.ID, confirmed[0].ID)

	none, err := f.svc.ListForOwnerByStatus(ctx, 3, model.StatusCheckedIn)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.svc.ListForOwnerByStatus(ctx, 3, model.Status("LOST"))
	requireKind(t, err, KindInvalidArgument)

	allPending, err := f.svc.ListAllByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.Len(t, allPending, 2)
	assert.Equal(t, []uint64{a.ID, c.ID}, []uint64{allPending[0].ID, allPending[1].ID})

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

// racingStore lets another request cancel the reservation between the
// engine's read and its conditional write.
type racingStore struct {
	*memstore.Reservations
	once sync.Once
}

func (s *racingStore) UpdateStatus(ctx context.Context, id uint64, expected, next model.Status, now time.Time) (model.Reservation, error) {
	s.once.Do(func() {
		_, _ = s.Reservations.UpdateStatus(ctx, id, expected, model.StatusCanceled, now)
	})
	return s.Reservations.UpdateStatus(ctx, id, expected, next, now)
}

func TestConcurrentUpdateSurfacesConflict(t *testing.T) {
	stores := memstore.NewStores()
	stores.Put(model.Store{ID: storeID, OwnerID: 3})
	users := memstore.NewUsers()
	users.Put(model.User{ID: 7, Role: model.RoleCustomer, IsActive: true})
	store := &racingStore{Reservations: memstore.NewReservations(stores)}
	svc := NewService(store, stores, users, WithClock(func() time.Time { return bookedAt }))
	ctx := context.Background()

	r, err := svc.Create(ctx, customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, owner3, r.ID, model.StatusConfirmed)
	requireKind(t, err, KindConflict)
	requireCode(t, err, CodeConcurrentUpdate)

	got, err := store.FindByID(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCanceled, got.Status)
}

type failingStore struct {
	*memstore.Reservations
}

func (failingStore) FindByID(context.Context, uint64) (model.Reservation, error) {
	return model.Reservation{}, errors.New("connection reset")
}

func TestInfrastructureErrorsAreInternal(t *testing.T) {
	stores := memstore.NewStores()
	svc := NewService(failingStore{memstore.NewReservations(stores)}, stores, memstore.NewUsers())

	_, err := svc.Cancel(context.Background(), customer7, 1)
	requireKind(t, err, KindInternal)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "internal error", e.Message())
	assert.ErrorContains(t, err, "connection reset")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	r, err := f.svc.Create(context.Background(), customer7, CreateInput{StoreID: storeID, ReservationTime: slot, PhoneNumber: testPhone})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Len(t, f.events.types(), 1)
}

func TestEventCarriesTransition(t *testing.T) {
	f := newFixture(t)
	r := f.book(t, customer7, storeID, slot)
	_, err := f.svc.Decide(context.Background(), owner3, r.ID, model.StatusRejected)
	require.NoError(t, err)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 2)
	ev := f.events.events[1]
	assert.Equal(t, queue.EventRejected, ev.Type)
	assert.Equal(t, r.ID, ev.ReservationID)
	assert.Equal(t, uint64(3), ev.ActorID)
	assert.Equal(t, "PENDING", ev.FromStatus)
	assert.Equal(t, "REJECTED", ev.ToStatus)
	assert.NotEmpty(t, ev.EventID)
}

func TestAdminIsNotACustomer(t *testing.T) {
	f := newFixture(t)
	r := f.book(t, customer7, storeID, slot)
	_, err := f.svc.Cancel(context.Background(), admin1, r.ID)
	requireKind(t, err, KindUnauthorized)
}
