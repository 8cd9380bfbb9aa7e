package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

func TestCanTransition(t *testing.T) {
	allowed := map[Transition]bool{}
	for _, tr := range transitions {
		allowed[tr] = true
	}
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			for _, actor := range []Actor{ActorCustomer, ActorOwner} {
				err := CanTransition(from, to, actor)
				if allowed[Transition{From: from, To: to, Actor: actor}] {
					assert.NoError(t, err, "%s -> %s by %s", from, to, actor)
				} else {
					assert.Error(t, err, "%s -> %s by %s", from, to, actor)
				}
			}
		}
	}
}

func TestLifecycleGraphShape(t *testing.T) {
	assert.True(t, Terminal(model.StatusCanceled))
	assert.True(t, Terminal(model.StatusCheckedIn))
	assert.False(t, Terminal(model.StatusPending))
	assert.Equal(t, []model.Status{model.StatusCanceled}, NextStatuses(model.StatusRejected))
	assert.ElementsMatch(t,
		[]model.Status{model.StatusCheckedIn, model.StatusCanceled},
		NextStatuses(model.StatusConfirmed))

	// Only owners decide; only customers cancel or check in.
	require.Error(t, CanTransition(model.StatusPending, model.StatusConfirmed, ActorCustomer))
	require.Error(t, CanTransition(model.StatusPending, model.StatusCanceled, ActorOwner))
	require.Error(t, CanTransition(model.StatusRejected, model.StatusCheckedIn, ActorCustomer))
}

func TestWithinCheckInWindow(t *testing.T) {
	at := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)
	w := DefaultCheckInWindow

	assert.True(t, WithinCheckInWindow(at, at.Add(-w), w))
	assert.True(t, WithinCheckInWindow(at, at.Add(w), w))
	assert.True(t, WithinCheckInWindow(at, at.Add(-9*time.Minute), w))
	assert.False(t, WithinCheckInWindow(at, at.Add(-w-time.Second), w))
	assert.False(t, WithinCheckInWindow(at, at.Add(w+time.Second), w))
	assert.False(t, WithinCheckInWindow(at, at.Add(-15*time.Minute), w))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(fail("op", CodeStoreNotFound)))
	assert.Equal(t, KindAuthentication, KindOf(AuthenticationError(errors.New("expired"))))
	assert.Equal(t, KindUnauthorized, KindOf(Forbidden("op")))
	assert.False(t, IsKind(nil, KindInternal))

	wrapped := errors.Join(errors.New("context"), fail("op", CodeAlreadyCheckedIn))
	assert.True(t, IsKind(wrapped, KindAlreadyCheckedIn))
}

func TestEveryCodeHasKindAndMessage(t *testing.T) {
	for code := range messages {
		_, ok := codeKinds[code]
		assert.True(t, ok, "code %s has no kind", code)
	}
	for code := range codeKinds {
		assert.NotEmpty(t, messages[code], "code %s has no message", code)
	}
	assert.Equal(t, Message(CodeInternal), Message(Code("NOPE")))
}
