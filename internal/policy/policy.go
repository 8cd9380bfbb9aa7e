// Package policy decides whether a principal may perform an action on a
// reservation, store or review resource. Decide is pure: it reads nothing but its
// arguments, so every call re-evaluates the caller's current principal.
package policy

import "github.com/DoHyunDaniel/reservation-api-project/internal/model"

// Action names an operation guarded by the policy.
type Action string

const (
	ActionCreate               Action = "reservation.create"
	ActionCancel               Action = "reservation.cancel"
	ActionHardDelete           Action = "reservation.delete"
	ActionCheckIn              Action = "reservation.check_in"
	ActionCheckInAsOwner       Action = "reservation.check_in_as_owner"
	ActionConfirmOrReject      Action = "reservation.decide"
	ActionListOwn              Action = "reservation.list_own"
	ActionListPendingForOwner  Action = "reservation.list_pending_for_owner"
	ActionListForOwnerByStatus Action = "reservation.list_for_owner_by_status"
	ActionListAllByStatus      Action = "reservation.list_all_by_status"
	ActionListAllReservations  Action = "reservation.list_all"

	// ActionManageStore covers editing and removing a store.
	ActionManageStore Action = "store.manage"
	// ActionWriteReview covers reviewing one's own visit and editing or
	// removing one's own review.
	ActionWriteReview Action = "review.write"
)

// Reason explains a decision. Allowed decisions carry ReasonAllowed.
type Reason string

const (
	ReasonAllowed         Reason = "ALLOWED"
	ReasonUnauthenticated Reason = "UNAUTHENTICATED"
	ReasonRoleMismatch    Reason = "ROLE_MISMATCH"
	ReasonNotOwner        Reason = "NOT_OWNER"
	ReasonUnknownAction   Reason = "UNKNOWN_ACTION"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}

func owns(p model.Principal, owner *uint64) bool {
	return owner != nil && *owner == p.UserID
}

// Decide evaluates the rules in order and returns the first match.
// resourceOwnerID is the user that owns the target: the reservation holder
// for customer actions, the store owner for owner actions. It is nil when
// no resource exists yet (create) or the action is not resource scoped.
func Decide(p model.Principal, action Action, resourceOwnerID *uint64) Decision {
	if !p.Authenticated() {
		return deny(ReasonUnauthenticated)
	}

	switch action {
	case ActionConfirmOrReject, ActionListPendingForOwner, ActionListForOwnerByStatus, ActionCheckInAsOwner, ActionManageStore:
		if p.Role != model.RoleOwner {
			return deny(ReasonRoleMismatch)
		}
		if resourceOwnerID != nil && *resourceOwnerID != p.UserID {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionListAllByStatus, ActionListAllReservations:
		if p.Role != model.RoleAdmin {
			return deny(ReasonRoleMismatch)
		}
		return allow()

	case ActionCancel, ActionHardDelete, ActionCheckIn, ActionWriteReview:
		if !owns(p, resourceOwnerID) {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionCreate, ActionListOwn:
		return allow()
	}

	return deny(ReasonUnknownAction)
}
