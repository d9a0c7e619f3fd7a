// Package engine reconciles the private internal calendar with the curated
// public calendar: it assembles point-in-time sync snapshots with drift
// detection, and executes the publish, update and unpublish write paths.
package engine

import (
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/gracechapel/calsync/internal"
)

type (
	Mapping     = internal.Mapping
	SyncEvent   = internal.SyncEvent
	Snapshot    = internal.Snapshot
	ListOptions = internal.ListOptions
)

// Config names the two calendar identities the engine reconciles and the
// effective provider identity reported in snapshots.
type Config struct {
	InternalCalendarID string
	PublicCalendarID   string
	Identity           string
}

// Engine is request-scoped and stateless between invocations; all durable
// state lives in the mapping store. It holds no locks of its own: the
// store's create-if-absent is the only concurrency-safety primitive, and two
// racing publishes for the same event resolve as last writer wins.
type Engine struct {
	api    internal.CalendarAPI
	store  internal.MappingStore
	cfg    Config
	logger *slog.Logger
}

func New(api internal.CalendarAPI, store internal.MappingStore, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:    api,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// WriteResult is returned by the publish, update and unpublish operations.
type WriteResult struct {
	Mapping *internal.Mapping           `json:"mapping"`
	Payload internal.PublicEventPayload `json:"payload"`
	Event   *calendar.Event             `json:"response,omitempty"`
}

// checkWritable fails fast when no mapping store is configured: the engine
// never performs a provider write it cannot record.
func (e *Engine) checkWritable() error {
	if e.store == nil {
		return internal.ErrStoreUnavailable
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
