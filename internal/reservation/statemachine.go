package reservation

import (
	"fmt"
	"time"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

// Actor is the party performing a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorOwner    Actor = "owner"
)

// Transition is one legal edge of the lifecycle graph.
type Transition struct {
	From  model.Status
	To    model.Status
	Actor Actor
}

// transitions is the whole lifecycle graph. CANCELED and CHECKED_IN are
// terminal; hard delete is not a transition and is allowed from anywhere.
var transitions = []Transition{
	{From: model.StatusPending, To: model.StatusConfirmed, Actor: ActorOwner},
	{From: model.StatusPending, To: model.StatusRejected, Actor: ActorOwner},

	{From: model.StatusPending, To: model.StatusCheckedIn, Actor: ActorCustomer},
	{From: model.StatusConfirmed, To: model.StatusCheckedIn, Actor: ActorCustomer},

	{From: model.StatusPending, To: model.StatusCanceled, Actor: ActorCustomer},
	{From: model.StatusConfirmed, To: model.StatusCanceled, Actor: ActorCustomer},
	{From: model.StatusRejected, To: model.StatusCanceled, Actor: ActorCustomer},
}

var transitionSet = func() map[Transition]bool {
	m := make(map[Transition]bool, len(transitions))
	for _, t := range transitions {
		m[t] = true
	}
	return m
}()

// CanTransition reports an error when actor may not move from -> to.
func CanTransition(from, to model.Status, actor Actor) error {
	if transitionSet[Transition{From: from, To: to, Actor: actor}] {
		return nil
	}
	return fmt.Errorf("transition %s -> %s not allowed for %s", from, to, actor)
}

// NextStatuses lists the statuses reachable from s by any actor.
func NextStatuses(s model.Status) []model.Status {
	var out []model.Status
	seen := map[model.Status]bool{}
	for _, t := range transitions {
		if t.From == s && !seen[t.To] {
			seen[t.To] = true
			out = append(out, t.To)
		}
	}
	return out
}

// Terminal reports whether no transition leaves s.
func Terminal(s model.Status) bool {
	return len(NextStatuses(s)) == 0
}

// DefaultCheckInWindow is how far before or after the reservation time a
// customer may check in.
const DefaultCheckInWindow = 10 * time.Minute

// WithinCheckInWindow reports whether now lies in [at-window, at+window].
// Both bounds are inclusive.
func WithinCheckInWindow(at, now time.Time, window time.Duration) bool {
	start := at.Add(-window)
	end := at.Add(window)
	return !now.Before(start) && !now.After(end)
}
