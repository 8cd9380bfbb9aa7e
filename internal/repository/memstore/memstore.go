// Package memstore keeps users, stores, reviews, refresh tokens and
// reservations in process memory. It honours the same contracts as the MySQL repositories
// (sentinel errors, atomic duplicate check, compare-and-set status updates)
// and backs STORAGE_DRIVER=memory as well as the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
	"github.com/DoHyunDaniel/reservation-api-project/internal/utils"
)

// Users is an in-memory user table with unique emails.
type Users struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]model.User
	now    func() time.Time
}

func NewUsers() *Users {
	return &Users{byID: map[uint64]model.User{}, now: time.Now}
}

// Create hashes password and stores the user, rejecting taken emails.
func (u *Users) Create(_ context.Context, email, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	u.nextID++
	now := u.now().UTC()
	u.byID[u.nextID] = model.User{
		ID: u.nextID, Email: email, PasswordHash: hash, Role: role,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return u.nextID, nil
}

// Put inserts a user with a fixed id, replacing any previous one.
func (u *Users) Put(user model.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.byID[user.ID] = user
	if user.ID > u.nextID {
		u.nextID = user.ID
	}
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, user := range u.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

// Exists reports whether an active user with id exists.
func (u *Users) Exists(_ context.Context, id uint64) (bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	return ok && user.IsActive, nil
}

// Tokens is an in-memory refresh token table keyed by hash.
type Tokens struct {
	mu     sync.Mutex
	nextID uint64
	byHash map[string]model.RefreshToken
	now    func() time.Time
}

func NewTokens() *Tokens {
	return &Tokens{byHash: map[string]model.RefreshToken{}, now: time.Now}
}

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.byHash[tokenHash] = model.RefreshToken{
		ID: t.nextID, UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: t.now().UTC(),
	}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.byHash[tokenHash]
	if !ok || !tok.Usable(t.now().UTC()) {
		return 0, repository.ErrNotFound
	}
	return tok.UserID, nil
}

// Rotate revokes oldHash and stores newHash in one step, failing when the
// old token is no longer usable.
func (t *Tokens) Rotate(_ context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	old, ok := t.byHash[oldHash]
	if !ok || !old.Usable(now) {
		return 0, repository.ErrNotFound
	}
	old.RevokedAt = &now
	t.byHash[oldHash] = old
	t.nextID++
	t.byHash[newHash] = model.RefreshToken{
		ID: t.nextID, UserID: old.UserID, TokenHash: newHash, ExpiresAt: exp, CreatedAt: now,
	}
	return old.UserID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok, ok := t.byHash[tokenHash]; ok && tok.RevokedAt == nil {
		now := t.now().UTC()
		tok.RevokedAt = &now
		t.byHash[tokenHash] = tok
	}
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	for h, tok := range t.byHash {
		if tok.UserID == userID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
			t.byHash[h] = tok
		}
	}
	return nil
}

// Stores is an in-memory store directory.
type Stores struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]model.Store
	now    func() time.Time

	// reviews share mu so a review write and the rating refresh of its
	// store are one step.
	nextReviewID uint64
	reviews      map[uint64]model.Review

	// inUse reports whether reservations still reference a store. It is
	// set by NewReservations and called with mu held.
	inUse func(storeID uint64) bool
}

func NewStores() *Stores {
	return &Stores{byID: map[uint64]model.Store{}, reviews: map[uint64]model.Review{}, now: time.Now}
}

func (s *Stores) Create(_ context.Context, st model.Store) (model.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	st.ID = s.nextID
	st.CreatedAt = s.now().UTC()
	s.byID[st.ID] = st
	return st, nil
}

// Put inserts a store with a fixed id, replacing any previous one.
func (s *Stores) Put(st model.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[st.ID] = st
	if st.ID > s.nextID {
		s.nextID = st.ID
	}
}

// Update rewrites the editable fields of st.
func (s *Stores) Update(_ context.Context, st model.Store) (model.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[st.ID]
	if !ok {
		return model.Store{}, repository.ErrNotFound
	}
	cur.Name, cur.Latitude, cur.Longitude, cur.Detail = st.Name, st.Latitude, st.Longitude, st.Detail
	s.byID[st.ID] = cur
	return cur, nil
}

// Delete removes a store and its reviews, refusing with ErrConflict while
// reservations reference it.
func (s *Stores) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	if s.inUse != nil && s.inUse(id) {
		return repository.ErrConflict
	}
	delete(s.byID, id)
	for rid, rv := range s.reviews {
		if rv.StoreID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

// ownedBy returns the ids of the stores owned by ownerID.
func (s *Stores) ownedBy(ownerID uint64) map[uint64]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[uint64]bool{}
	for id, st := range s.byID {
		if st.OwnerID == ownerID {
			out[id] = true
		}
	}
	return out
}

// CreateReview stores rv, one review per reservation.
func (s *Stores) CreateReview(_ context.Context, rv model.Review) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rv.StoreID]; !ok {
		return model.Review{}, repository.ErrNotFound
	}
	for _, existing := range s.reviews {
		if existing.ReservationID == rv.ReservationID {
			return model.Review{}, repository.ErrDuplicate
		}
	}
	s.nextReviewID++
	now := s.now().UTC()
	rv.ID, rv.CreatedAt, rv.UpdatedAt = s.nextReviewID, now, now
	s.reviews[rv.ID] = rv
	s.refreshRatingLocked(rv.StoreID)
	return rv, nil
}

func (s *Stores) GetReview(_ context.Context, id uint64) (model.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv, ok := s.reviews[id]
	if !ok {
		return model.Review{}, repository.ErrNotFound
	}
	return rv, nil
}

func (s *Stores) UpdateReview(_ context.Context, id uint64, rating int, content string) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return model.Review{}, repository.ErrNotFound
	}
	rv.Rating, rv.Content, rv.UpdatedAt = rating, content, s.now().UTC()
	s.reviews[id] = rv
	s.refreshRatingLocked(rv.StoreID)
	return rv, nil
}

func (s *Stores) DeleteReview(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.reviews, id)
	s.refreshRatingLocked(rv.StoreID)
	return nil
}

// ListReviews returns the reviews of a store, newest first.
func (s *Stores) ListReviews(_ context.Context, storeID uint64) ([]model.Review, error) {
	s.mu.RLock()
	out := []model.Review{}
	for _, rv := range s.reviews {
		if rv.StoreID == storeID {
			out = append(out, rv)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Stores) refreshRatingLocked(storeID uint64) {
	st, ok := s.byID[storeID]
	if !ok {
		return
	}
	var sum, n int
	for _, rv := range s.reviews {
		if rv.StoreID == storeID {
			sum += rv.Rating
			n++
		}
	}
	st.AvgRating = 0
	if n > 0 {
		st.AvgRating = float64(sum) / float64(n)
	}
	s.byID[storeID] = st
}

func (s *Stores) OwnerOf(_ context.Context, storeID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[storeID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return st.OwnerID, nil
}

// List returns all stores ordered by sortBy. Distance is only computed
// when both coordinates are given; without them distance sorting falls
// back to name.
func (s *Stores) List(_ context.Context, sortBy model.StoreSort, lat, lng *float64) ([]model.StoreSummary, error) {
	s.mu.RLock()
	out := make([]model.StoreSummary, 0, len(s.byID))
	for _, st := range s.byID {
		sum := model.StoreSummary{Store: st}
		if lat != nil && lng != nil {
			d := repository.HaversineKm(*lat, *lng, st.Latitude, st.Longitude)
			sum.DistanceKm = &d
		}
		out = append(out, sum)
	}
	s.mu.RUnlock()

	byName := func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	}
	switch {
	case sortBy == model.SortByRating:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].AvgRating != out[j].AvgRating {
				return out[i].AvgRating > out[j].AvgRating
			}
			return byName(i, j)
		})
	case sortBy == model.SortByDistance && lat != nil && lng != nil:
		sort.SliceStable(out, func(i, j int) bool {
			if *out[i].DistanceKm != *out[j].DistanceKm {
				return *out[i].DistanceKm < *out[j].DistanceKm
			}
			return byName(i, j)
		})
	default:
		sort.SliceStable(out, byName)
	}
	return out, nil
}

// Reservations is an in-memory reservation table. A single mutex makes the
// duplicate check in Insert and the compare-and-set in UpdateStatus atomic.
type Reservations struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Reservation
	stores *Stores
}

// NewReservations creates an empty table. stores resolves ownership for
// the owner listings.
func NewReservations(stores *Stores) *Reservations {
	r := &Reservations{byID: map[uint64]model.Reservation{}, stores: stores}
	stores.mu.Lock()
	stores.inUse = r.referencesStore
	stores.mu.Unlock()
	return r
}

// referencesStore reports whether any reservation, in any status, points
// at storeID. Stores.Delete calls it with the store lock held, so r.mu is
// never held while the store lock is taken.
func (r *Reservations) referencesStore(storeID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.byID {
		if res.StoreID == storeID {
			return true
		}
	}
	return false
}

func (r *Reservations) ExistsActive(_ context.Context, userID, storeID uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existsLocked(userID, storeID, at), nil
}

func (r *Reservations) existsLocked(userID, storeID uint64, at time.Time) bool {
	for _, res := range r.byID {
		if res.UserID == userID && res.StoreID == storeID && res.ReservationTime.Equal(at) && res.Active() {
			return true
		}
	}
	return false
}

func (r *Reservations) Insert(_ context.Context, res model.Reservation) (model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Active() && r.existsLocked(res.UserID, res.StoreID, res.ReservationTime) {
		return model.Reservation{}, repository.ErrDuplicate
	}
	r.nextID++
	res.ID = r.nextID
	r.byID[res.ID] = res
	return res, nil
}

func (r *Reservations) FindByID(_ context.Context, id uint64) (model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return res, nil
}

func (r *Reservations) UpdateStatus(_ context.Context, id uint64, expected, next model.Status, now time.Time) (model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	if res.Status != expected {
		return model.Reservation{}, repository.ErrConflict
	}
	res.Status = next
	ts := now.UTC()
	res.UpdatedAt = &ts
	r.byID[id] = res
	return res, nil
}

func (r *Reservations) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Reservations) ListByUser(_ context.Context, userID uint64, exclude *model.Status) ([]model.Reservation, error) {
	return r.filter(func(res model.Reservation) bool {
		return res.UserID == userID && (exclude == nil || res.Status != *exclude)
	}), nil
}

func (r *Reservations) ListByStoreOwnerAndStatus(_ context.Context, ownerID uint64, status model.Status) ([]model.Reservation, error) {
	owned := r.stores.ownedBy(ownerID)
	return r.filter(func(res model.Reservation) bool {
		return res.Status == status && owned[res.StoreID]
	}), nil
}

func (r *Reservations) ListByStatus(_ context.Context, status model.Status) ([]model.Reservation, error) {
	return r.filter(func(res model.Reservation) bool { return res.Status == status }), nil
}

func (r *Reservations) ListAll(context.Context) ([]model.Reservation, error) {
	return r.filter(func(model.Reservation) bool { return true }), nil
}

// filter returns matches ordered by reservation time, then id, matching
// the ORDER BY of the MySQL repository.
func (r *Reservations) filter(keep func(model.Reservation) bool) []model.Reservation {
	r.mu.Lock()
	out := make([]model.Reservation, 0)
	for _, res := range r.byID {
		if keep(res) {
			out = append(out, res)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationTime.Equal(out[j].ReservationTime) {
			return out[i].ReservationTime.Before(out[j].ReservationTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
