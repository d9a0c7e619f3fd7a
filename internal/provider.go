package internal

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/calendar/v3"
)

var (
	// ErrStoreUnavailable means no writable mapping store is configured;
	// write operations must fail before touching the provider.
	ErrStoreUnavailable = errors.New("mapping store unavailable")

	// ErrSourceEventNotFound means the internal event a write operation
	// targets could not be loaded.
	ErrSourceEventNotFound = errors.New("source event not found")

	// ErrMappingNotFound means no mapping matched the given key.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrNotPublished means an update was requested for an event that was
	// never published (no known public event id).
	ErrNotPublished = errors.New("event has no published counterpart")
)

// ListOptions bounds a calendar listing. When SyncToken is set it takes
// precedence and the time window must be left empty, mirroring the provider
// API's own constraint.
type ListOptions struct {
	TimeMin   time.Time
	TimeMax   time.Time
	SyncToken string
}

// EventPage is the result of one full (paginated-through) listing.
type EventPage struct {
	Events        []*calendar.Event
	NextSyncToken string
}

// CalendarAPI is the thin provider surface the engine needs. Both calendar
// identities are addressed through the same authenticated handle.
type CalendarAPI interface {
	List(ctx context.Context, calendarID string, opts ListOptions) (*EventPage, error)
	Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
}

// MappingStore persists mapping records. Get and GetByPublicID return
// (nil, nil) when no record matches.
type MappingStore interface {
	Ensure(ctx context.Context, sourceKey string) (*Mapping, error)
	Get(ctx context.Context, sourceKey string) (*Mapping, error)
	GetByPublicID(ctx context.Context, publicEventID string) (*Mapping, error)
	Update(ctx context.Context, sourceKey string, patch MappingPatch) (*Mapping, error)
	All(ctx context.Context) ([]*Mapping, error)
}
