package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"runclub-backend/pkg/database"

	"github.com/sirupsen/logrus"
)

// ErrorKind classifies an error for the HTTP layer.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindValidation
	// KindConflict is a business-rule violation: wrong phase, duplicate, still referenced.
	KindConflict
	KindNotFound
	KindSetupRequired
	KindTimeout
)

// Status 返回对应的 HTTP 状态码
func (k ErrorKind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSetupRequired:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Code 返回机器可读的错误代码
func (k ErrorKind) Code() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindSetupRequired:
		return "SETUP_REQUIRED"
	case KindTimeout:
		return "UPSTREAM_TIMEOUT"
	}
	return "INTERNAL_SERVER_ERROR"
}

// AppError is an error with a client-safe message.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError creates an AppError.
func NewError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an AppError that keeps err for errors.Is/As and logging.
func WrapError(kind ErrorKind, err error, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Forbidden(message string) *AppError       { return NewError(KindForbidden, "%s", message) }
func Validation(message string) *AppError      { return NewError(KindValidation, "%s", message) }
func Conflict(message string) *AppError        { return NewError(KindConflict, "%s", message) }
func NotFound(message string) *AppError        { return NewError(KindNotFound, "%s", message) }

// Classify maps any error onto an AppError, translating store sentinels.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, database.ErrSetupRequired):
		return WrapError(KindSetupRequired, err, "This feature has not been set up yet")
	case errors.Is(err, database.ErrNotFound):
		return WrapError(KindNotFound, err, "Record not found")
	case errors.Is(err, database.ErrDuplicate):
		return WrapError(KindConflict, err, "Record already exists")
	case errors.Is(err, database.ErrReferenced):
		return WrapError(KindConflict, err, "Record is still in use")
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(KindTimeout, err, "Upstream request timed out")
	}
	return WrapError(KindInternal, err, "Internal server error")
}

// WriteError 将错误写为 {"error": "...", "code": "..."}。内部错误只记录日志，不向客户端暴露细节。
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	appErr := Classify(err)
	status := appErr.Kind.Status()

	if log != nil {
		entry := log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request rejected")
		}
	}

	WriteErrorResponseWithCode(w, status, appErr.Kind.Code(), appErr.Message)
}
