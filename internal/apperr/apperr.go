// Package apperr defines the error taxonomy shared by the store, service and
// HTTP layers. Every error that reaches a client is classified by Kind; the
// HTTP status is derived from the Kind only.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the client.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindProductUnavailable
	KindInsufficientStock
	KindInvalidCoupon
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

var kindNames = map[Kind]string{
	KindInternal:           "InternalError",
	KindInvalidRequest:     "InvalidRequest",
	KindProductUnavailable: "ProductUnavailable",
	KindInsufficientStock:  "InsufficientStock",
	KindInvalidCoupon:      "InvalidCoupon",
	KindNotFound:           "NotFound",
	KindConflict:           "Conflict",
	KindUnauthorized:       "Unauthorized",
	KindForbidden:          "Forbidden",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRequest, KindInvalidCoupon:
		return http.StatusBadRequest
	case KindProductUnavailable, KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Data is rendered to the client
// alongside Message; Err is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Data    interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithData attaches a client-visible payload and returns e.
func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a client-safe message.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return Newf(KindInvalidRequest, format, args...)
}

func NotFound(resource string) *Error {
	return Newf(KindNotFound, "%s not found", resource)
}

func Conflict(format string, args ...interface{}) *Error {
	return Newf(KindConflict, format, args...)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
