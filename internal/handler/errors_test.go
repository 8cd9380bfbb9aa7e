package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
)

func TestStatusFor(t *testing.T) {
	cases := map[reservation.Kind]int{
		reservation.KindNotFound:               http.StatusNotFound,
		reservation.KindUnauthorized:           http.StatusForbidden,
		reservation.KindAuthentication:         http.StatusUnauthorized,
		reservation.KindDuplicateBooking:       http.StatusConflict,
		reservation.KindInvalidStateTransition: http.StatusConflict,
		reservation.KindAlreadyCheckedIn:       http.StatusConflict,
		reservation.KindConflict:               http.StatusConflict,
		reservation.KindOutsideCheckInWindow:   http.StatusUnprocessableEntity,
		reservation.KindInvalidArgument:        http.StatusBadRequest,
		reservation.KindInternal:               http.StatusInternalServerError,
		reservation.Kind("SOMETHING_NEW"):      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	assert.NoError(t, writeError(c, errors.New("dial tcp 10.0.0.5:3306: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL"`)
}

func TestWriteError_UsesStableCode(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	assert.NoError(t, writeError(c, reservation.Forbidden("reservation.list_all")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"LIST_FORBIDDEN"`)
}
