// Package apperr holds the error taxonomy shared by services and controllers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Message, so errors.Is(err, ErrAlreadyRated) holds for
// copies carrying different Details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

// Wrap tags err as an internal failure with context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrCourseNotFound   = NotFound("course not found")
	ErrVideoNotFound    = NotFound("video not found")
	ErrUserNotFound     = NotFound("user not found")
	ErrPaymentNotFound  = NotFound("payment not found")
	ErrCategoryNotFound = NotFound("category not found")

	ErrNotEnrolled     = Forbidden("not enrolled")
	ErrNotCourseOwner  = Forbidden("you are not the course instructor")
	ErrCoursePublished = Forbidden("course is published, unpublish it first")
	ErrNotCompleted    = Forbidden("course not completed")
	ErrUserBlocked     = Forbidden("user is blocked")

	ErrAlreadyRated       = Conflict("already rated")
	ErrAlreadyEnrolled    = Conflict("already enrolled")
	ErrDuplicateOrder     = Conflict("duplicate video order values")
	ErrHasEnrollments     = Conflict("course has enrollments and cannot be unpublished")
	ErrNoVideos           = Conflict("course has no videos and cannot be published")
	ErrCategoryInUse      = Conflict("category still has courses")
	ErrCategoryExists     = Conflict("category already exists")
	ErrEmailTaken         = Conflict("email already registered")
	ErrPaymentAlreadyDone = Conflict("payment already settled")

	ErrInvalidScore = Validation("rating must be between 1 and 5")
)
