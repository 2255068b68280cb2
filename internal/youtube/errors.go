package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Error kinds. Classified errors wrap exactly one of these.
var (
	ErrAuth            = errors.New("youtube: authentication failed")
	ErrQuota           = errors.New("youtube: quota exceeded")
	ErrNetwork         = errors.New("youtube: network failure")
	ErrNotFound        = errors.New("youtube: not found")
	ErrInvalidArgument = errors.New("youtube: invalid argument")
)

// Error is an upstream failure with its kind and the upstream message.
type Error struct {
	Kind    error
	Status  int
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

var authReasons = map[string]bool{
	"authError":               true,
	"forbidden":               true,
	"insufficientPermissions": true,
	"unauthorized":            true,
	"youtubeSignupRequired":   true,
}

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"dailyLimitExceeded":    true,
	"uploadLimitExceeded":   true,
	"userRateLimitExceeded": true,
}

// classify maps any error from the Data API or the HTTP transport onto an
// *Error. Already-classified errors pass through; context cancellation is
// returned untouched.
func classify(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var yerr *Error
	if errors.As(err, &yerr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		if len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
		msg := gerr.Message
		if msg == "" {
			msg = fallback
		}
		return &Error{Kind: kindFor(gerr.Code, reason), Status: gerr.Code, Reason: reason, Message: msg}
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrNetwork, Message: fmt.Sprintf("network error: %v", err)}
	}

	if fallback != "" {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	return err
}

func kindFor(status int, reason string) error {
	switch {
	case quotaReasons[reason] || status == http.StatusTooManyRequests:
		return ErrQuota
	case authReasons[reason] || status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest:
		return ErrInvalidArgument
	case status == http.StatusForbidden:
		return ErrAuth
	case status >= 500:
		return ErrNetwork
	}
	return ErrInvalidArgument
}

func invalidArgument(msg string) error {
	return &Error{Kind: ErrInvalidArgument, Status: http.StatusBadRequest, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: ErrNotFound, Status: http.StatusNotFound, Message: msg}
}
