package google

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotFound indicates the event id was deleted or never existed.
	ErrNotFound = errors.New("google: event not found")

	// ErrStaleSyncToken indicates an expired incremental sync token (410).
	// The caller must drop the token and re-list with a time window; retrying
	// the same call cannot succeed.
	ErrStaleSyncToken = errors.New("google: sync token expired, full resync required")
)

// AccessError means the service account cannot reach a specific calendar:
// either the calendar was never shared with it, or domain-wide delegation /
// the Workspace API is not set up for the impersonated user. It carries
// enough context for an operator to fix the sharing.
type AccessError struct {
	CalendarID string
	ConfigVar  string
	Identity   string
	Err        error
}

func (e *AccessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "google: access denied to calendar %q", e.CalendarID)
	if e.ConfigVar != "" {
		fmt.Fprintf(&b, " (configured via %s)", e.ConfigVar)
	}
	if e.Identity != "" {
		fmt.Fprintf(&b, " for %s", e.Identity)
	}
	fmt.Fprintf(&b, ": share the calendar with the service account or enable the Calendar API: %v", e.Err)
	return b.String()
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing event.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// IsAccessDenied returns true if the error indicates missing calendar sharing
// or a disabled API.
func IsAccessDenied(err error) bool {
	var aerr *AccessError
	if errors.As(err, &aerr) {
		return true
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusForbidden || errIsReason(gerr, "accessNotConfigured")
}

// IsStaleSyncToken returns true if the error indicates the incremental sync
// token is no longer valid.
func IsStaleSyncToken(err error) bool {
	if errors.Is(err, ErrStaleSyncToken) {
		return true
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusGone {
		return true
	}
	return errIsReason(gerr, "fullSyncRequired")
}

func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || errIsReason(gerr, "rateLimitExceeded")
}

func errIsReason(gerr *googleapi.Error, reason string) bool {
	for _, item := range gerr.Errors {
		if item.Reason == reason {
			return true
		}
	}
	return false
}

// classify translates a raw provider failure into the engine's error
// taxonomy: not-found, access-denied, stale sync token, or the original
// error when none applies.
func (c *Client) classify(err error, calendarID string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case IsStaleSyncToken(err):
		return fmt.Errorf("%w: %v", ErrStaleSyncToken, err)
	case IsAccessDenied(err):
		return &AccessError{
			CalendarID: calendarID,
			ConfigVar:  c.labels[calendarID],
			Identity:   c.identity,
			Err:        err,
		}
	default:
		return err
	}
}
