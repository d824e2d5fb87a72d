package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the upstream did not answer in time.
	ErrTimeout = errors.New("upstream timed out")
	// ErrMalformed is returned when a response could not be decoded or the
	// extraction produced nothing.
	ErrMalformed = errors.New("malformed upstream response")
	// ErrNotConfigured is returned when an endpoint or its API key is missing.
	ErrNotConfigured = errors.New("upstream not configured")
	// ErrTooLarge is returned when a download exceeds the size cap.
	ErrTooLarge = errors.New("download too large")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string // first bytes of the body, for logs
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}

// Error ties an upstream failure to the service that produced it.
type Error struct {
	Service string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Describe turns an upstream failure into a chat-friendly message.
// ok is false if err did not come from this package.
func Describe(err error) (msg string, ok bool) {
	service := "the service"
	var ue *Error
	if errors.As(err, &ue) && ue.Service != "" {
		service = ue.Service
	}

	var se *StatusError
	var safety *URLSafetyError
	switch {
	case errors.As(err, &safety):
		return "That URL is not allowed.", true
	case errors.Is(err, ErrTimeout):
		return fmt.Sprintf("%s took too long to answer. Try again later.", service), true
	case errors.Is(err, ErrNotConfigured):
		return fmt.Sprintf("%s is not configured on this bot.", service), true
	case errors.Is(err, ErrTooLarge):
		return "That file is too large to send.", true
	case errors.As(err, &se):
		if se.Code == 404 {
			return fmt.Sprintf("%s found nothing for that.", service), true
		}
		if se.Code == 429 {
			return fmt.Sprintf("%s is rate limiting us. Try again later.", service), true
		}
		return fmt.Sprintf("%s is unavailable right now (HTTP %d).", service, se.Code), true
	case errors.Is(err, ErrMalformed):
		return fmt.Sprintf("%s returned an unexpected answer.", service), true
	case ue != nil:
		return fmt.Sprintf("Could not reach %s.", service), true
	}
	return "", false
}

// failureReason is the short label a failure is counted under in metrics.
func failureReason(err error) string {
	var se *StatusError
	var safety *URLSafetyError
	switch {
	case errors.As(err, &safety):
		return "blocked"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.As(err, &se):
		return fmt.Sprintf("http_%d", se.Code)
	case errors.Is(err, ErrMalformed):
		return "malformed"
	}
	return "error"
}
