// Package apierr defines the typed error taxonomy produced at the transport
// boundary. Callers match on the sentinel kinds with errors.Is; no layer above
// the transport ever inspects error message text.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by the request pipeline wraps exactly one
// of these sentinels.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRequestTimeout     = errors.New("request timeout")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrServerError        = errors.New("server error")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrUndecodable        = errors.New("undecodable token")
	ErrParseFailure       = errors.New("malformed response body")
	ErrNoContent          = errors.New("no content")
)

// Error carries the HTTP status and server-supplied message alongside the
// sentinel kind so callers can match with errors.Is and still present the
// server's own text when there is one.
type Error struct {
	Kind    error               // One of the sentinel kinds above
	Status  int                 // HTTP status code, 0 for transport-level failures
	Message string              // Server-supplied or derived message
	Details map[string][]string // Field-level validation detail, when provided
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind.Error(), e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates a typed error with an explicit kind.
func New(kind error, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// SessionExpired is the error raised when no usable credential exists and
// silent refresh could not produce one.
func SessionExpired() *Error {
	return &Error{Kind: ErrUnauthorized, Status: http.StatusUnauthorized, Message: "Session expired. Please log in again."}
}

// Timeout is the error raised when a request exceeds its configured deadline.
func Timeout(message string) *Error {
	if message == "" {
		message = "Request timeout"
	}
	return &Error{Kind: ErrRequestTimeout, Status: http.StatusRequestTimeout, Message: message}
}

// Network wraps a transport-level failure that never produced an HTTP status.
func Network(err error) *Error {
	return &Error{Kind: ErrNetworkUnreachable, Message: err.Error()}
}

// FromStatus maps a non-success HTTP status and its response body text to a
// typed error. An empty body falls back to the status's standard reason phrase.
func FromStatus(status int, body string) *Error {
	if body == "" {
		body = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusRequestTimeout:
		kind = ErrRequestTimeout
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusConflict:
		kind = ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = ErrValidation
	case status >= 500:
		kind = ErrServerError
	default:
		kind = ErrServerError
	}

	return &Error{Kind: kind, Status: status, Message: body}
}

// UserMessage converts any error into a message suitable for direct display.
// Typed errors map by status; everything else degrades to a generic message.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest:
			return nonEmpty(apiErr.Message, "Invalid request. Please check your input.")
		case http.StatusUnauthorized:
			return "Session expired. Please log in again."
		case http.StatusForbidden:
			return "You do not have permission to perform this action."
		case http.StatusNotFound:
			return "The requested resource was not found."
		case http.StatusRequestTimeout:
			return "Request timed out. Please try again."
		case http.StatusConflict:
			return nonEmpty(apiErr.Message, "A conflict occurred. The resource may already exist.")
		case http.StatusUnprocessableEntity:
			return nonEmpty(apiErr.Message, "Validation failed. Please check your input.")
		case http.StatusInternalServerError:
			return "Server error. Please try again later."
		}
		if errors.Is(apiErr.Kind, ErrNetworkUnreachable) {
			return "Unable to connect to the server. Please check your connection."
		}
		return nonEmpty(apiErr.Message, "An unexpected error occurred.")
	}

	if err != nil {
		return err.Error()
	}
	return "An unexpected error occurred."
}

// IsUnauthorized reports whether the error represents a missing, expired, or
// otherwise irrecoverable credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTimeout reports whether the error represents an exceeded request deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrRequestTimeout)
}

// IsValidation reports whether the error carries field-level validation detail.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether the requested resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
