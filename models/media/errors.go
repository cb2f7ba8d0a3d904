package media

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorKind classifies errors so callers can decide whether to retry,
// fail the request, or abort outright without matching message strings.
type ErrorKind string

const (
	// ErrCredentialsMissing means store credentials are absent or
	// incomplete. This is a misconfiguration. Never retry.
	ErrCredentialsMissing ErrorKind = "CredentialsMissing"

	// ErrInvalidInput means the caller passed something unusable,
	// such as an empty URL. Never retry.
	ErrInvalidInput ErrorKind = "InvalidInput"

	// ErrMalformedStoreURL means a URL claimed to be ours but we
	// could not extract a key from it. Never retry.
	ErrMalformedStoreURL ErrorKind = "MalformedStoreURL"

	// ErrUploadFailed covers transport and service errors talking
	// to the object store. Retryable.
	ErrUploadFailed ErrorKind = "UploadFailed"

	// ErrDownloadFailed covers transport and service errors fetching
	// bytes from a legacy host. Retryable.
	ErrDownloadFailed ErrorKind = "DownloadFailed"

	// ErrNotFound means the store reports no object at the given key.
	ErrNotFound ErrorKind = "NotFound"
)

type DetailedError interface {
	Detail() string
}

// Error is the one error type this codebase produces. Kind drives
// retry and HTTP status decisions; everything else is for debugging.
type Error struct {
	Err     error
	File    string
	Kind    ErrorKind
	Line    int
	Message string
}

func NewError(kind ErrorKind, message string, err error) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Err:     err,
		File:    file,
		Kind:    kind,
		Line:    line,
		Message: message,
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return e.Message
}

// Retryable says whether retrying the same operation could possibly
// succeed. Only transient network/service failures qualify.
func (e *Error) Retryable() bool {
	return e.Kind == ErrUploadFailed || e.Kind == ErrDownloadFailed
}

// This returns a detailed error message.
func (e *Error) Detail() string {
	underlyingError := ""
	if e.Err != nil {
		underlyingError = fmt.Sprintf("(Underlying error: %s)", e.Err.Error())
	}
	return fmt.Sprintf("%s: %s [%s:%d] %s",
		e.Kind, e.Message, e.File, e.Line, underlyingError)
}

// KindOf returns the ErrorKind of err, or the empty string if err
// is not one of ours.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable returns true only for errors we know to be transient.
// Unknown error types are not retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
