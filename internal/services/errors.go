package services

import (
	"errors"

	"djqueue-backend/internal/repository"
)

// Kind is a machine-readable failure category
type Kind string

const (
	KindInternal            Kind = "Internal"
	KindNotAuthorized       Kind = "NotAuthorized"
	KindNotFound            Kind = "NotFound"
	KindInvalidInput        Kind = "InvalidInput"
	KindInvalidTimeWindow   Kind = "InvalidTimeWindow"
	KindQueueClosed         Kind = "QueueClosed"
	KindAlreadyQueued       Kind = "AlreadyQueued"
	KindNotQueued           Kind = "NotQueued"
	KindAlreadySelected     Kind = "AlreadySelected"
	KindInvitationPending   Kind = "InvitationPending"
	KindNoPendingInvitation Kind = "NoPendingInvitation"
	KindDJNotQueued         Kind = "DjNotQueued"
	KindNotSelectedDJ       Kind = "NotSelectedDJ"
	KindDuplicateRating     Kind = "DuplicateRating"
	KindRoleAlreadySet      Kind = "RoleAlreadySet"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindTryAgain            Kind = "TryAgain"
)

// Error is a domain failure with a kind and a user-facing message
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks
var (
	ErrNotAuthorized       = newError(KindNotAuthorized, "not authorized")
	ErrNotFound            = newError(KindNotFound, "not found")
	ErrInvalidInput        = newError(KindInvalidInput, "invalid input")
	ErrInvalidTimeWindow   = newError(KindInvalidTimeWindow, "event end must not be before its start")
	ErrQueueClosed         = newError(KindQueueClosed, "the queue for this event is closed")
	ErrAlreadyQueued       = newError(KindAlreadyQueued, "already in the queue for this event")
	ErrNotQueued           = newError(KindNotQueued, "not in the queue for this event")
	ErrAlreadySelected     = newError(KindAlreadySelected, "a DJ has already been selected for this event")
	ErrInvitationPending   = newError(KindInvitationPending, "an invitation is already pending for this event")
	ErrNoPendingInvitation = newError(KindNoPendingInvitation, "no pending invitation for you on this event")
	ErrDJNotQueued         = newError(KindDJNotQueued, "the DJ is not in the queue for this event")
	ErrNotSelectedDJ       = newError(KindNotSelectedDJ, "you are not the selected DJ for this event")
	ErrDuplicateRating     = newError(KindDuplicateRating, "already rated this user for this event")
	ErrRoleAlreadySet      = newError(KindRoleAlreadySet, "profile already completed")
	ErrInvalidTransition   = newError(KindInvalidTransition, "event can no longer change status")
	ErrTryAgain            = newError(KindTryAgain, "the request conflicted with another one, try again")
)

// KindOf returns the kind of err, or KindInternal when err is not a domain error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// storeError translates persistence failures that callers can act on
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, repository.ErrTxRetriesExhausted) {
		return wrapError(KindTryAgain, ErrTryAgain.Message, err)
	}
	return err
}

// notFoundAs maps repository.ErrNotFound to a NotFound error naming what
func notFoundAs(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return wrapError(KindNotFound, message, err)
	}
	return err
}
