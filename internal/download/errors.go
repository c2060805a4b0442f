package download

import (
	"errors"
	"fmt"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrTransientNetwork covers connection failures and timeouts.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrUnreachable is returned once the cookie warm-up has used up its
	// retries. It matches ErrTransientNetwork too.
	ErrUnreachable = fmt.Errorf("%w: host unreachable", ErrTransientNetwork)

	// ErrUnrecognizedContent is returned when a payload is neither CSV nor a
	// readable spreadsheet after every fallback.
	ErrUnrecognizedContent = errors.New("unrecognized content")
)

// StatusError is a completed request whose status code was not 200.
type StatusError struct {
	Kind       error
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	switch e.Kind {
	case ErrResourceNotFound:
		return fmt.Sprintf("URL: %s, Status Code:%d", e.URL, e.StatusCode)
	case ErrAccessDenied:
		msg := fmt.Sprintf("Status Code Received: %d", e.StatusCode)
		if e.URL != "" {
			msg += ". For url: " + e.URL
		}
		return msg
	default:
		return fmt.Sprintf("Status Code Received: %d", e.StatusCode)
	}
}

func (e *StatusError) Unwrap() error { return e.Kind }

// ContentError is an unrecognized payload. Detail is a best-effort description
// of what the bytes looked like.
type ContentError struct {
	Detail string
	Err    error
}

func (e *ContentError) Error() string {
	msg := ErrUnrecognizedContent.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnrecognizedContent}
	}
	return []error{ErrUnrecognizedContent, e.Err}
}
