package comments

import (
	"errors"
	"fmt"
)

// Kind classifies a comment failure for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindInvalidID
	KindUnauthenticated
	KindNotFound
	// KindNotFoundOrForbidden covers both "absent" and "owned by someone else".
	KindNotFoundOrForbidden
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidID:
		return "invalid_id"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindNotFoundOrForbidden:
		return "not_found_or_forbidden"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind     Kind
	Resource string
	Message  string
	Err      error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInvalidID           = &Error{Kind: KindInvalidID}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNotFoundOrForbidden = &Error{Kind: KindNotFoundOrForbidden}
	ErrStore               = &Error{Kind: KindStore}
)

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Resource != "" {
		msg = e.Resource + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or 0 if err is not a comment error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func validationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func invalidIDError(resource string) error {
	return &Error{Kind: KindInvalidID, Resource: resource, Message: "invalid identifier"}
}

func unauthenticatedError() error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

func notFoundError(resource string) error {
	return &Error{Kind: KindNotFound, Resource: resource, Message: "not found"}
}

func notFoundOrForbiddenError() error {
	return &Error{Kind: KindNotFoundOrForbidden, Resource: "comment", Message: "not found or not owned by you"}
}

func storeError(op string, err error) error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}
