package replay

import (
	"errors"
	"fmt"
)

// Sentinel errors for collaborator operations.
var (
	// ErrUnknownCollaborator indicates the requested collaborator is
	// not registered.
	ErrUnknownCollaborator = errors.New("unknown collaborator")

	// ErrUnavailable indicates the gateway is unavailable.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrRateLimited indicates the call was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates the call timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidRequest indicates the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMissingCredentials indicates credentials are not configured.
	ErrMissingCredentials = errors.New("credentials not configured")
)

// Error wraps collaborator errors with context.
type Error struct {
	Collaborator string // collaborator name ("openai", ...)
	Op           string // operation that failed ("replay", "judge", "embed")
	Err          error  // underlying error
	Retryable    bool   // whether the error is likely transient
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Collaborator != "" {
		return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new collaborator error.
func NewError(collaborator, op string, err error, retryable bool) *Error {
	return &Error{
		Collaborator: collaborator,
		Op:           op,
		Err:          err,
		Retryable:    retryable,
	}
}

// IsRetryable checks if an error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Retryable
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}
