package internal

import (
	"google.golang.org/api/calendar/v3"
)

type EventSide string

func (s EventSide) String() string {
	return string(s)
}

var (
	SideInternal EventSide = "internal"
	SidePublic   EventSide = "public"
)

type DriftKind string

var (
	DriftSourceChanged      DriftKind = "sourceChanged"
	DriftPublicChanged      DriftKind = "publicChanged"
	DriftMissingPublicEvent DriftKind = "missingPublicEvent"
	DriftUnmapped           DriftKind = "unmapped"
	DriftSyncError          DriftKind = "syncError"
)

type DriftLevel string

var (
	LevelInfo    DriftLevel = "info"
	LevelWarning DriftLevel = "warning"
	LevelError   DriftLevel = "error"
)

// DriftNotice describes one detected divergence between the stored sync state
// and the live calendar state. Notices are computed per snapshot and never
// persisted.
type DriftNotice struct {
	Kind    DriftKind  `json:"kind"`
	Level   DriftLevel `json:"level"`
	Message string     `json:"message"`
}

// SyncEvent joins one raw calendar event with its sanitized payload, its
// resolved mapping (if any) and any drift detected against that mapping.
// The Side discriminator says which calendar the event was read from; it
// decides which direction the payload hash is compared in.
type SyncEvent struct {
	Side    EventSide          `json:"side"`
	Event   *calendar.Event    `json:"event"`
	Payload PublicEventPayload `json:"payload"`
	Hash    string             `json:"hash"`
	Mapping *Mapping           `json:"mapping,omitempty"`
	Drift   []DriftNotice      `json:"drift,omitempty"`
}

// Snapshot is the point-in-time view of both calendars, their mappings and
// all detected drift, plus generation metadata for observability.
type Snapshot struct {
	GeneratedAt        string       `json:"generatedAt"`
	Identity           string       `json:"identity,omitempty"`
	InternalCalendarID string       `json:"internalCalendarId"`
	PublicCalendarID   string       `json:"publicCalendarId"`
	NextSyncToken      string       `json:"nextSyncToken,omitempty"`
	Internal           []*SyncEvent `json:"internal"`
	Public             []*SyncEvent `json:"public"`
	Mappings           []*Mapping   `json:"mappings"`

	// Notices holds drift that could not be attached to a listed event,
	// such as a missing public event whose source is outside the window.
	Notices []DriftNotice `json:"notices,omitempty"`
}
