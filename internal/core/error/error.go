package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// SQLErrorMessage describes SQL store failures.
	SQLErrorMessage = "sql operation failed"
	// SessionNotFoundMessage describes a missing session.
	SessionNotFoundMessage = "session not found"
	// StateCorruptionMessage describes a stored state that cannot be decoded.
	StateCorruptionMessage = "session state is corrupted"
	// ValidationMessage describes rejected field updates.
	ValidationMessage = "validation failed"
	// TransportMessage describes failed calls to external collaborators.
	TransportMessage = "external call failed"
)

// Kind classifies an AppError so callers can pick a recovery strategy.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindSessionNotFound
	KindTransport
	KindStateCorruption
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSessionNotFound:
		return "session_not_found"
	case KindTransport:
		return "transport"
	case KindStateCorruption:
		return "state_corruption"
	default:
		return "internal"
	}
}

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    kindForStatus(status),
		Status:  status,
		Message: message,
	}
}

// Validation reports a rejected field update.
func Validation(err error) *AppError {
	return &AppError{Err: err, Kind: KindValidation, Status: http.StatusUnprocessableEntity, Message: ValidationMessage}
}

// NotFound reports a missing session.
func NotFound(err error) *AppError {
	return &AppError{Err: err, Kind: KindSessionNotFound, Status: http.StatusNotFound, Message: SessionNotFoundMessage}
}

// Transport reports a failure talking to the LLM, the portal or a store.
func Transport(err error, message string) *AppError {
	if message == "" {
		message = TransportMessage
	}
	return &AppError{Err: err, Kind: KindTransport, Status: http.StatusBadGateway, Message: message}
}

// Corruption reports a stored state document that cannot be trusted.
func Corruption(err error) *AppError {
	return &AppError{Err: err, Kind: KindStateCorruption, Status: http.StatusConflict, Message: StateCorruptionMessage}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindSessionNotFound
	case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return KindTransport
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return KindValidation
	case http.StatusConflict:
		return KindStateCorruption
	default:
		return KindInternal
	}
}
