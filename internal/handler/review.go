package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/policy"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
)

const maxReviewContent = 2000

// ReviewBook stores reviews and keeps the store ratings derived from them.
type ReviewBook interface {
	CreateReview(ctx context.Context, rv model.Review) (model.Review, error)
	GetReview(ctx context.Context, id uint64) (model.Review, error)
	UpdateReview(ctx context.Context, id uint64, rating int, content string) (model.Review, error)
	DeleteReview(ctx context.Context, id uint64) error
	ListReviews(ctx context.Context, storeID uint64) ([]model.Review, error)
}

// ReservationReader loads the reservation a review is written for.
type ReservationReader interface {
	FindByID(ctx context.Context, id uint64) (model.Reservation, error)
}

// StoreOwners resolves store ids.
type StoreOwners interface {
	OwnerOf(ctx context.Context, storeID uint64) (uint64, error)
}

type ReviewHandler struct {
	Reviews      ReviewBook
	Reservations ReservationReader
	Stores       StoreOwners
}

func NewReviewHandler(reviews ReviewBook, reservations ReservationReader, stores StoreOwners) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews, Reservations: reservations, Stores: stores}
}

type createReviewReq struct {
	ReservationID uint64 `json:"reservation_id"`
	Rating        int    `json:"rating"`
	Content       string `json:"content"`
}

type updateReviewReq struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

type reviewResp struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	UserID        uint64    `json:"user_id"`
	StoreID       uint64    `json:"store_id"`
	Rating        int       `json:"rating"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toReviewResp(rv model.Review) reviewResp {
	return reviewResp{
		ID:            rv.ID,
		ReservationID: rv.ReservationID,
		UserID:        rv.UserID,
		StoreID:       rv.StoreID,
		Rating:        rv.Rating,
		Content:       rv.Content,
		CreatedAt:     rv.CreatedAt,
		UpdatedAt:     rv.UpdatedAt,
	}
}

func validateReview(rating int, content string) *rejection {
	switch {
	case !model.ValidRating(rating):
		return &rejection{http.StatusBadRequest, "INVALID_RATING", "rating must be between 1 and 5"}
	case utf8.RuneCountInString(content) > maxReviewContent:
		return &rejection{http.StatusBadRequest, "CONTENT_TOO_LONG", "content must be at most 2000 characters"}
	}
	return nil
}

// CreateReview handles POST /v1/reviews. Only the holder of a checked-in
// reservation may review it, once.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	var req createReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	if req.ReservationID == 0 {
		return badRequest(c, "RESERVATION_ID_REQUIRED", "reservation_id is required")
	}
	req.Content = strings.TrimSpace(req.Content)
	if rej := validateReview(req.Rating, req.Content); rej != nil {
		return rej.render(c)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	res, err := h.Reservations.FindByID(ctx, req.ReservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return (&rejection{http.StatusNotFound, "RESERVATION_NOT_FOUND", "reservation not found"}).render(c)
		}
		return internalRejection(c, "review.create", err).render(c)
	}
	p := middleware.PrincipalFrom(c)
	if rej := authorizeReview(p, "review.create", res.UserID); rej != nil {
		return rej.render(c)
	}
	if res.Status != model.StatusCheckedIn {
		return (&rejection{http.StatusConflict, "REVIEW_NOT_ALLOWED", "only checked-in visits can be reviewed"}).render(c)
	}

	rv, err := h.Reviews.CreateReview(ctx, model.Review{
		ReservationID: res.ID,
		UserID:        p.UserID,
		StoreID:       res.StoreID,
		Rating:        req.Rating,
		Content:       req.Content,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return storeFailure(c, "review.create", err).render(c)
	}
	if err != nil {
		return reviewFailure(c, "review.create", err).render(c)
	}
	return c.JSON(http.StatusCreated, toReviewResp(rv))
}

// UpdateReview handles PUT /v1/reviews/:id for the review's author.
func (h *ReviewHandler) UpdateReview(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid review id")
	}
	var req updateReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if rej := validateReview(req.Rating, req.Content); rej != nil {
		return rej.render(c)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if rej := h.authorizeAuthor(ctx, c, "review.update", id); rej != nil {
		return rej.render(c)
	}
	rv, err := h.Reviews.UpdateReview(ctx, id, req.Rating, req.Content)
	if err != nil {
		return reviewFailure(c, "review.update", err).render(c)
	}
	return c.JSON(http.StatusOK, toReviewResp(rv))
}

// DeleteReview handles DELETE /v1/reviews/:id for the review's author.
func (h *ReviewHandler) DeleteReview(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid review id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if rej := h.authorizeAuthor(ctx, c, "review.delete", id); rej != nil {
		return rej.render(c)
	}
	if err := h.Reviews.DeleteReview(ctx, id); err != nil {
		return reviewFailure(c, "review.delete", err).render(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"review_id": id})
}

// ListStoreReviews handles GET /v1/stores/:id/reviews.
func (h *ReviewHandler) ListStoreReviews(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "INVALID_ID", "invalid store id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if _, err := h.Stores.OwnerOf(ctx, id); err != nil {
		return storeFailure(c, "review.list", err).render(c)
	}
	reviews, err := h.Reviews.ListReviews(ctx, id)
	if err != nil {
		return internalRejection(c, "review.list", err).render(c)
	}
	out := make([]reviewResp, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, toReviewResp(rv))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReviewHandler) authorizeAuthor(ctx context.Context, c echo.Context, op string, id uint64) *rejection {
	rv, err := h.Reviews.GetReview(ctx, id)
	if err != nil {
		return reviewFailure(c, op, err)
	}
	return authorizeReview(middleware.PrincipalFrom(c), op, rv.UserID)
}

func authorizeReview(p model.Principal, op string, holder uint64) *rejection {
	d := policy.Decide(p, policy.ActionWriteReview, &holder)
	if d.Allowed {
		return nil
	}
	slog.Warn("review access denied",
		slog.String("op", op),
		slog.Uint64("user_id", p.UserID),
		slog.String("reason", string(d.Reason)))
	return &rejection{http.StatusForbidden, "REVIEW_FORBIDDEN", "only the customer who made the visit can write its review"}
}

func reviewFailure(c echo.Context, op string, err error) *rejection {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &rejection{http.StatusNotFound, "REVIEW_NOT_FOUND", "review not found"}
	case errors.Is(err, repository.ErrDuplicate):
		return &rejection{http.StatusConflict, "REVIEW_EXISTS", "this visit has already been reviewed"}
	}
	return internalRejection(c, op, err)
}
