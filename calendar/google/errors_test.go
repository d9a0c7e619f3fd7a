package google

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func apiErr(code int, reason string) *googleapi.Error {
	e := &googleapi.Error{Code: code}
	if reason != "" {
		e.Errors = []googleapi.ErrorItem{{Reason: reason}}
	}
	return e
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("loading: %w", ErrNotFound)))
	assert.True(t, IsNotFound(apiErr(http.StatusNotFound, "")))
	assert.False(t, IsNotFound(apiErr(http.StatusForbidden, "")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, IsAccessDenied(apiErr(http.StatusForbidden, "")))
	assert.True(t, IsAccessDenied(apiErr(http.StatusBadRequest, "accessNotConfigured")))
	assert.True(t, IsAccessDenied(&AccessError{CalendarID: "cal", Err: apiErr(http.StatusForbidden, "")}))
	assert.False(t, IsAccessDenied(apiErr(http.StatusNotFound, "")))
}

func TestIsStaleSyncToken(t *testing.T) {
	assert.True(t, IsStaleSyncToken(ErrStaleSyncToken))
	assert.True(t, IsStaleSyncToken(apiErr(http.StatusGone, "")))
	assert.True(t, IsStaleSyncToken(apiErr(http.StatusBadRequest, "fullSyncRequired")))
	assert.False(t, IsStaleSyncToken(apiErr(http.StatusNotFound, "")))
}

func TestAccessErrorMessageNamesTheConfigVar(t *testing.T) {
	err := &AccessError{
		CalendarID: "public@group.calendar.google.com",
		ConfigVar:  "PUBLIC_CALENDAR_ID",
		Identity:   "svc@example.iam.gserviceaccount.com",
		Err:        apiErr(http.StatusForbidden, ""),
	}

	assert.Contains(t, err.Error(), "PUBLIC_CALENDAR_ID")
	assert.Contains(t, err.Error(), "svc@example.iam.gserviceaccount.com")
	assert.True(t, IsAccessDenied(fmt.Errorf("inserting: %w", err)))
}

func TestClassify(t *testing.T) {
	c := &Client{
		identity: "svc@example.iam.gserviceaccount.com",
		labels:   map[string]string{"pub": "PUBLIC_CALENDAR_ID"},
	}

	assert.NoError(t, c.classify(nil, "pub"))

	err := c.classify(apiErr(http.StatusNotFound, ""), "pub")
	assert.ErrorIs(t, err, ErrNotFound)

	err = c.classify(apiErr(http.StatusGone, ""), "pub")
	assert.ErrorIs(t, err, ErrStaleSyncToken)

	err = c.classify(apiErr(http.StatusForbidden, ""), "pub")
	var aerr *AccessError
	assert.ErrorAs(t, err, &aerr)
	assert.Equal(t, "PUBLIC_CALENDAR_ID", aerr.ConfigVar)
	assert.Equal(t, "svc@example.iam.gserviceaccount.com", aerr.Identity)

	plain := errors.New("network down")
	assert.Equal(t, plain, c.classify(plain, "pub"))
}
