// Package apperror classifies failures from the store, the payment gateways
// and the form layer so callers can decide between retrying, re-presenting
// the form, or showing a generic message.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the class of a failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindReference     Kind = "reference"
	KindBadRequest    Kind = "bad_request"
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindRateLimit     Kind = "rate_limit"
	KindConfiguration Kind = "configuration"
	KindNotification  Kind = "notification"
)

// Postgres SQLSTATE codes the site cares about.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
	CodeInvalidText         = "22P02"
	CodeStringTooLong       = "22001"
)

// Error is a classified failure. Code is machine readable (a SQLSTATE, a
// PostgREST code or a gateway code); Message is safe to log but is not shown
// to site visitors.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Configuration reports a missing or invalid operator setting.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the class of err. Unclassified errors count as transient:
// they are most often network failures surfaced by an HTTP client.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindTransient
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable decides whether repeating the call that produced err can help.
// Structural rejections never can; a rate-limit signal is retried even though
// it arrives as a client error.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindRateLimit, KindTransient:
		return true
	default:
		return false
	}
}

// FromPostgres classifies a SQLSTATE (or PostgREST PGRST*) code.
func FromPostgres(code, message string, err error) *Error {
	e := &Error{Code: code, Message: message, Err: err}
	switch {
	case code == CodeUniqueViolation:
		e.Kind = KindConflict
	case code == CodeForeignKeyViolation:
		e.Kind = KindReference
	case code == CodeNotNullViolation, code == CodeCheckViolation,
		code == CodeInvalidText, code == CodeStringTooLong:
		e.Kind = KindBadRequest
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"), strings.HasPrefix(code, "42"):
		// data exceptions, other integrity violations, syntax or missing column
		e.Kind = KindBadRequest
	case code == "PGRST116":
		e.Kind = KindNotFound
	case strings.HasPrefix(code, "PGRST"):
		e.Kind = KindBadRequest
	case code == "53300", code == "57P01", strings.HasPrefix(code, "08"), strings.HasPrefix(code, "40"):
		// too many connections, admin shutdown, connection exceptions, rollbacks
		e.Kind = KindTransient
	default:
		e.Kind = KindTransient
	}
	return e
}

// FromHTTPStatus classifies a remote HTTP failure. A recognised SQLSTATE in
// code takes precedence over the status, except for 429 which always means
// "slow down".
func FromHTTPStatus(status int, code, message string) *Error {
	if status == http.StatusTooManyRequests {
		return &Error{Kind: KindRateLimit, Code: code, Status: status, Message: message}
	}
	if code != "" && status < http.StatusInternalServerError {
		e := FromPostgres(code, message, nil)
		e.Status = status
		if e.Kind != KindTransient {
			return e
		}
	}
	e := &Error{Code: code, Status: status, Message: message}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindConfiguration
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
	case status == http.StatusRequestTimeout:
		e.Kind = KindTransient
	case status >= 400 && status < 500:
		e.Kind = KindBadRequest
	default:
		e.Kind = KindTransient
	}
	return e
}
