package service

import "errors"

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAccess
	KindConflict
	KindInvalidFilter
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAccess:
		return "access"
	case KindConflict:
		return "conflict"
	case KindInvalidFilter:
		return "invalid_filter"
	case KindAuth:
		return "auth"
	default:
		return "internal"
	}
}

// Error is a domain failure raised before any write is issued.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidDescription = &Error{KindValidation, "description must not be empty"}
	ErrInvalidPublishedAt = &Error{KindValidation, "published date is required"}
	ErrInvalidDeadline    = &Error{KindValidation, "deadline must be after the published date"}
	ErrNoStudents         = &Error{KindValidation, "assignment must have at least one registered student"}
	ErrInvalidDates       = &Error{KindValidation, "published date must be before the deadline"}

	// ErrNotFoundOrForbidden does not say which of the two happened.
	ErrNotFoundOrForbidden = &Error{KindAccess, "assignment not found"}
	ErrNotAssigned         = &Error{KindAccess, "assignment is not assigned to this student"}
	ErrAssignmentNotFound  = &Error{KindAccess, "assignment not found"}

	ErrAlreadySubmitted = &Error{KindConflict, "assignment already submitted"}

	ErrInvalidFilter = &Error{KindInvalidFilter, "invalid status filter"}

	ErrInvalidCredentials = &Error{KindAuth, "invalid username or password"}
)

// KindOf returns zero for errors that are not domain errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
