// Package errorbank is the error vocabulary shared by services and transports.
// Services return *AppError; HTTP and gRPC translate the kind into a status.
package errorbank

import (
	"errors"
	"maps"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies an AppError.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindInvalidTransition   Kind = "invalid_transition"
	KindPricingUnavailable  Kind = "pricing_unavailable"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindInternal            Kind = "internal"
)

type mapping struct {
	status int
	code   codes.Code
}

var mappings = map[Kind]mapping{
	KindBadRequest:          {http.StatusBadRequest, codes.InvalidArgument},
	KindValidation:          {http.StatusBadRequest, codes.InvalidArgument},
	KindConflict:            {http.StatusConflict, codes.Aborted},
	KindNotFound:            {http.StatusNotFound, codes.NotFound},
	KindInvalidTransition:   {http.StatusConflict, codes.FailedPrecondition},
	KindPricingUnavailable:  {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	KindUnprocessableEntity: {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	KindInternal:            {http.StatusInternalServerError, codes.Internal},
}

func (k Kind) mapping() mapping {
	if m, ok := mappings[k]; ok {
		return m
	}
	return mappings[KindInternal]
}

// AppError is a classified error with optional structured details.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option configures an AppError at construction.
type Option func(*AppError)

// WithCause records the underlying error. It is available to errors.Is and
// errors.As but never rendered to clients.
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

func WithDetail(key string, value any) Option {
	return WithDetails(map[string]any{key: value})
}

func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) == 0 {
			return
		}
		if e.details == nil {
			e.details = make(map[string]any, len(details))
		}
		maps.Copy(e.details, details)
	}
}

// New builds an AppError. An empty message defaults to the kind name.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause != nil:
		return e.message + ": " + e.cause.Error()
	default:
		return e.message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the category; a nil error reports internal.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// StatusCode is the HTTP status for the error's kind.
func (e *AppError) StatusCode() int { return e.Kind().mapping().status }

// GRPCCode is the gRPC status code for the error's kind.
func (e *AppError) GRPCCode() codes.Code { return e.Kind().mapping().code }

func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// Validation reports input the caller must correct before retrying.
func Validation(message string, opts ...Option) *AppError {
	return New(KindValidation, message, opts...)
}

// Conflict reports a lost race: a duplicate key, a stale state or a busy lock.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// InvalidTransition reports an operation the entity's current state forbids.
func InvalidTransition(message string, opts ...Option) *AppError {
	return New(KindInvalidTransition, message, opts...)
}

// PricingUnavailable reports that no catalog plan matched and no override was
// supplied. Retrying with an override succeeds.
func PricingUnavailable(message string, opts ...Option) *AppError {
	return New(KindPricingUnavailable, message, opts...)
}

func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// From returns the AppError inside err, or wraps err as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// Is reports whether err carries an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.kind == kind
}
