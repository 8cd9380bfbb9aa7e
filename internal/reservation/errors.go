package reservation

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers. Kinds are stable; the boundary
// maps them onto transport statuses.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindDuplicateBooking       Kind = "DUPLICATE_BOOKING"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindAlreadyCheckedIn       Kind = "ALREADY_CHECKED_IN"
	KindOutsideCheckInWindow   Kind = "OUTSIDE_CHECKIN_WINDOW"
	KindConflict               Kind = "CONFLICT"
	KindAuthentication         Kind = "AUTHENTICATION"
	KindInvalidArgument        Kind = "INVALID_ARGUMENT"
	KindInternal               Kind = "INTERNAL"
)

// Code is a stable, client facing error identifier. Several codes share a
// kind so that, for example, a refused cancel and a refused delete can be
// told apart.
type Code string

const (
	CodeReservationNotFound  Code = "RESERVATION_NOT_FOUND"
	CodeStoreNotFound        Code = "STORE_NOT_FOUND"
	CodeUserNotFound         Code = "USER_NOT_FOUND"
	CodeCancelForbidden      Code = "CANCEL_FORBIDDEN"
	CodeDeleteForbidden      Code = "DELETE_FORBIDDEN"
	CodeDecisionForbidden    Code = "DECISION_FORBIDDEN"
	CodeCheckInForbidden     Code = "CHECKIN_FORBIDDEN"
	CodeListForbidden        Code = "LIST_FORBIDDEN"
	CodeCreateForbidden      Code = "CREATE_FORBIDDEN"
	CodeDuplicateReservation Code = "DUPLICATE_RESERVATION"
	CodeInvalidStatus        Code = "INVALID_RESERVATION_STATUS"
	CodeAlreadyCheckedIn     Code = "ALREADY_CHECKED_IN"
	CodeNotInCheckInWindow   Code = "NOT_IN_CHECKIN_WINDOW"
	CodeConcurrentUpdate     Code = "CONCURRENT_UPDATE"
	CodeInvalidToken         Code = "INVALID_TOKEN"
	CodeTimeNotInFuture      Code = "RESERVATION_TIME_NOT_FUTURE"
	CodePhoneRequired        Code = "PHONE_NUMBER_REQUIRED"
	CodeStoreRequired        Code = "STORE_ID_REQUIRED"
	CodeInvalidDecision      Code = "INVALID_DECISION_STATUS"
	CodeUnknownStatus        Code = "INVALID_STATUS"
	CodeInternal             Code = "INTERNAL"
)

var codeKinds = map[Code]Kind{
	CodeReservationNotFound:  KindNotFound,
	CodeStoreNotFound:        KindNotFound,
	CodeUserNotFound:         KindNotFound,
	CodeCancelForbidden:      KindUnauthorized,
	CodeDeleteForbidden:      KindUnauthorized,
	CodeDecisionForbidden:    KindUnauthorized,
	CodeCheckInForbidden:     KindUnauthorized,
	CodeListForbidden:        KindUnauthorized,
	CodeCreateForbidden:      KindUnauthorized,
	CodeDuplicateReservation: KindDuplicateBooking,
	CodeInvalidStatus:        KindInvalidStateTransition,
	CodeAlreadyCheckedIn:     KindAlreadyCheckedIn,
	CodeNotInCheckInWindow:   KindOutsideCheckInWindow,
	CodeConcurrentUpdate:     KindConflict,
	CodeInvalidToken:         KindAuthentication,
	CodeTimeNotInFuture:      KindInvalidArgument,
	CodePhoneRequired:        KindInvalidArgument,
	CodeStoreRequired:        KindInvalidArgument,
	CodeInvalidDecision:      KindInvalidArgument,
	CodeUnknownStatus:        KindInvalidArgument,
	CodeInternal:             KindInternal,
}

var messages = map[Code]string{
	CodeReservationNotFound:  "reservation not found",
	CodeStoreNotFound:        "store not found",
	CodeUserNotFound:         "user not found",
	CodeCancelForbidden:      "only the customer who made the reservation can cancel it",
	CodeDeleteForbidden:      "only the customer who made the reservation can delete it",
	CodeDecisionForbidden:    "only the owner of the store can confirm or reject this reservation",
	CodeCheckInForbidden:     "the visitor does not match the reservation holder",
	CodeListForbidden:        "you are not allowed to view these reservations",
	CodeCreateForbidden:      "sign in to make a reservation",
	CodeDuplicateReservation: "a reservation for this store and time already exists",
	CodeInvalidStatus:        "the reservation is not in a state that allows this change",
	CodeAlreadyCheckedIn:     "the reservation is already checked in",
	CodeNotInCheckInWindow:   "check-in is only possible within 10 minutes of the reservation time",
	CodeConcurrentUpdate:     "the reservation was changed by another request, reload and retry",
	CodeInvalidToken:         "authentication required",
	CodeTimeNotInFuture:      "reservation time must be in the future",
	CodePhoneRequired:        "phone number is required",
	CodeStoreRequired:        "store id is required",
	CodeInvalidDecision:      "status must be CONFIRMED or REJECTED",
	CodeUnknownStatus:        "unknown reservation status",
	CodeInternal:             "internal error",
}

// Message returns the human readable text for a code.
func Message(c Code) string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CodeInternal]
}

// Error is the typed failure returned by every Service operation.
type Error struct {
	Kind Kind
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the client facing text. Internal errors never expose their cause.
func (e *Error) Message() string { return Message(e.Code) }

func fail(op string, code Code) error {
	return &Error{Kind: codeKinds[code], Code: code, Op: op}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Op: op, Err: err}
}

// AuthenticationError reports a token that could not be resolved.
func AuthenticationError(err error) error {
	return &Error{Kind: KindAuthentication, Code: CodeInvalidToken, Op: "identity.resolve", Err: err}
}

// Forbidden builds an Unauthorized error for callers that run the policy
// themselves before an engine listing.
func Forbidden(op string) error {
	return fail(op, CodeListForbidden)
}

// KindOf classifies err. Errors not produced by this package are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
