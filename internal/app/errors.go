package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"journal/api/internal/auth"
	"journal/api/internal/authpw"
	"journal/api/internal/comments"
	"journal/api/internal/session"
	"journal/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var resourceLabels = map[string]string{
	"journal":       "Journal",
	"comment":       "Comment",
	"parentComment": "Parent comment",
}

func resourceLabel(resource string) string {
	if label, ok := resourceLabels[resource]; ok {
		return label
	}
	if resource == "" {
		return "Resource"
	}
	return resource
}

// mapError translates service errors into a status, code and client-safe message.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var commentErr *comments.Error
	if errors.As(err, &commentErr) {
		switch commentErr.Kind {
		case comments.KindValidation:
			return http.StatusBadRequest, "VALIDATION_ERROR", commentErr.Message, nil
		case comments.KindInvalidID:
			return http.StatusBadRequest, "INVALID_ID", "Invalid " + strings.ToLower(resourceLabel(commentErr.Resource)) + " id", nil
		case comments.KindUnauthenticated:
			return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
		case comments.KindNotFound:
			return http.StatusNotFound, "NOT_FOUND", resourceLabel(commentErr.Resource) + " not found", nil
		case comments.KindNotFoundOrForbidden:
			return http.StatusNotFound, "NOT_FOUND", "Comment not found or you are not the author", nil
		}
		return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
	}

	switch {
	case errors.Is(err, authpw.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", strings.TrimPrefix(err.Error(), authpw.ErrInvalidInput.Error()+": "), nil
	case errors.Is(err, authpw.ErrAlreadyRegistered):
		return http.StatusConflict, "USER_EXISTS", "User already exists", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrUserNotFound):
		return http.StatusNotFound, "NOT_FOUND", "User not found", nil
	case errors.Is(err, store.ErrInvalidRecord):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Invalid record", nil
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Record already exists", nil
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
