package api

import (
	"fmt"
	"strings"
)

// AuthError means the account could not be signed in or the session was
// rejected. The message carries the underlying cause so callers can tell
// bad credentials from connectivity trouble.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Message }

// TransportError covers everything between us and a decodable payload:
// connection failures, timeouts, non-2xx statuses and bodies that are not
// JSON. It carries the action so logs can name the failing call.
type TransportError struct {
	Action     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an application-level rejection: the payload decoded fine but
// reported a non-zero err code.
type APIError struct {
	Action  string
	Code    int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Action, e.Message) }

// AggregateError reports that every item of a batch failed, carrying each
// individual reason.
type AggregateError struct {
	Op      string
	Reasons []string
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(e.Reasons, "; "))
}
