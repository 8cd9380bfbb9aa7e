package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
	"github.com/DoHyunDaniel/reservation-api-project/internal/utils"
)

// StoreCatalog is the store directory as seen by HTTP handlers.
type StoreCatalog interface {
	Create(ctx context.Context, st model.Store) (model.Store, error)
	Update(ctx context.Context, st model.Store) (model.Store, error)
	Delete(ctx context.Context, id uint64) error
	OwnerOf(ctx context.Context, storeID uint64) (uint64, error)
	List(ctx context.Context, sortBy model.StoreSort, lat, lng *float64) ([]model.StoreSummary, error)
}

type StoreHandler struct {
	Stores StoreCatalog
	Users  UserAccounts
}

func NewStoreHandler(stores StoreCatalog, users UserAccounts) *StoreHandler {
	return &StoreHandler{Stores: stores, Users: users}
}

type registerStoreReq struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Detail    string  `json:"detail"`
}

// changeStoreReq edits a store. Changes are confirmed with the owner's
// password.
type changeStoreReq struct {
	registerStoreReq
	Password string `json:"password"`
}

type deleteStoreReq struct {
	Password string `json:"password"`
}

type storeResp struct {
	ID         uint64   `json:"id"`
	OwnerID    uint64   `json:"owner_id"`
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Detail     string   `json:"detail,omitempty"`
	AvgRating  float64  `json:"avg_rating"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func toStoreResp(st model.Store, dist *float64) storeResp {
	return storeResp{
		ID:         st.ID,
		OwnerID:    st.OwnerID,
		Name:       st.Name,
		Latitude:   st.Latitude,
		Longitude:  st.Longitude,
		Detail:     st.Detail,
		AvgRating:  st.AvgRating,
		DistanceKm: dist,
	}
}

// RegisterStore handles POST /v1/stores. The caller becomes the owner.
func (h *StoreHandler) RegisterStore(c echo.Context) error {
	var req registerStoreReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if code, msg := req.validate(); code != "" {
		return badRequest(c, code, msg)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	st, err := h.Stores.Create(ctx, model.Store{
		OwnerID:   middleware.PrincipalFrom(c).UserID,
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Detail:    strings.TrimSpace(req.Detail),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toStoreResp(st, nil))
}

func (r registerStoreReq) validate() (code, msg string) {
	switch {
	case r.Name == "":
		return "STORE_NAME_REQUIRED", "name is required"
	case r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180:
		return "INVALID_COORDINATES", "latitude/longitude out of range"
	}
	return "", ""
}

// UpdateStore handles PUT /v1/stores/:id for the store's owner.
func (h *StoreHandler) UpdateStore(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid store id")
	}
	var req changeStoreReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if code, msg := req.validate(); code != "" {
		return badRequest(c, code, msg)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if rej := h.authorizeManage(ctx, c, "store.update", id, req.Password); rej != nil {
		return rej.render(c)
	}
	st, err := h.Stores.Update(ctx, model.Store{
		ID:        id,
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Detail:    strings.TrimSpace(req.Detail),
	})
	if err != nil {
		return storeFailure(c, "store.update", err).render(c)
	}
	return c.JSON(http.StatusOK, toStoreResp(st, nil))
}

// DeleteStore handles DELETE /v1/stores/:id for the store's owner. A store
// with reservations on record, canceled ones included, cannot be removed.
func (h *StoreHandler) DeleteStore(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid store id")
	}
	var req deleteStoreReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if rej := h.authorizeManage(ctx, c, "store.delete", id, req.Password); rej != nil {
		return rej.render(c)
	}
	if err := h.Stores.Delete(ctx, id); err != nil {
		return storeFailure(c, "store.delete", err).render(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"store_id": id})
}

// authorizeManage resolves the store owner, runs the policy and confirms
// the caller's password. It returns nil when the change may proceed.
func (h *StoreHandler) authorizeManage(ctx context.Context, c echo.Context, op string, storeID uint64, password string) *rejection {
	if password == "" {
		return &rejection{http.StatusBadRequest, "PASSWORD_REQUIRED", "password is required to change a store"}
	}
	owner, err := h.Stores.OwnerOf(ctx, storeID)
	if err != nil {
		return storeFailure(c, op, err)
	}
	p := middleware.PrincipalFrom(c)
	if d := policy.Decide(p, policy.ActionManageStore, &owner); !d.Allowed {
		slog.Warn("store access denied",
			slog.String("op", op),
			slog.Uint64("user_id", p.UserID),
			slog.Uint64("store_id", storeID),
			slog.String("reason", string(d.Reason)))
		return &rejection{http.StatusForbidden, "STORE_FORBIDDEN", "only the owner of the store can change it"}
	}
	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeFailure(c, op, err)
	}
	if err != nil || !utils.VerifyPassword(u.PasswordHash, password) {
		return &rejection{http.StatusUnauthorized, "PASSWORD_UNMATCHED", "password does not match"}
	}
	return nil
}

func storeFailure(c echo.Context, op string, err error) *rejection {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &rejection{http.StatusNotFound, "STORE_NOT_FOUND", "store not found"}
	case errors.Is(err, repository.ErrConflict):
		return &rejection{http.StatusConflict, "STORE_HAS_RESERVATIONS", "a store with reservations on record cannot be deleted"}
	}
	return internalRejection(c, op, err)
}

// ListStores handles GET /v1/stores?sort=rating|distance|name&lat=&lng=.
// Distance sorting requires both coordinates.
func (h *StoreHandler) ListStores(c echo.Context) error {
	sortBy := model.ParseStoreSort(c.QueryParam("sort"))
	lat, latOK := coordinate(c.QueryParam("lat"), 90)
	lng, lngOK := coordinate(c.QueryParam("lng"), 180)
	if !latOK || !lngOK || (lat == nil) != (lng == nil) {
		return badRequest(c, "INVALID_COORDINATES", "lat and lng must be given together and be in range")
	}
	if sortBy == model.SortByDistance && lat == nil {
		return badRequest(c, "COORDINATES_REQUIRED", "sort=distance needs lat and lng")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	stores, err := h.Stores.List(ctx, sortBy, lat, lng)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]storeResp, 0, len(stores))
	for _, s := range stores {
		out = append(out, toStoreResp(s.Store, s.DistanceKm))
	}
	return c.JSON(http.StatusOK, out)
}

// coordinate parses an optional query coordinate bounded by ±limit.
func coordinate(raw string, limit float64) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < -limit || v > limit {
		return nil, false
	}
	return &v, true
}
