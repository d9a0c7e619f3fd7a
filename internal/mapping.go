package internal

type MappingStatus string

func (s MappingStatus) String() string {
	return string(s)
}

var (
	StatusDraft       MappingStatus = "draft"
	StatusPublished   MappingStatus = "published"
	StatusUnpublished MappingStatus = "unpublished"
)

// Mapping is the durable link between one internal event (or recurring
// series) and the public event it produced. Rows are never deleted; the
// status transitions instead. PublicEventID is non-empty only while the
// mapping is published; LastPublicEventID survives an unpublish so a later
// publish can patch the same public event instead of inserting a duplicate.
type Mapping struct {
	ID                string        `db:"id" json:"id"`
	SourceEventID     string        `db:"source_event_id" json:"sourceEventId"`
	PublicEventID     string        `db:"public_event_id" json:"publicEventId,omitempty"`
	LastPublicEventID string        `db:"last_public_event_id" json:"lastPublicEventId,omitempty"`
	PayloadHash       string        `db:"payload_hash" json:"payloadHash,omitempty"`
	LastSyncedAt      string        `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	Status            MappingStatus `db:"status" json:"status"`
}

// KnownPublicID returns the public event id this mapping is (or was last)
// linked to, preferring the live link.
func (m Mapping) KnownPublicID() string {
	if m.PublicEventID != "" {
		return m.PublicEventID
	}
	return m.LastPublicEventID
}

// MappingPatch is a merge patch for a mapping record. Only non-nil fields
// are written.
type MappingPatch struct {
	PublicEventID     *string
	LastPublicEventID *string
	PayloadHash       *string
	LastSyncedAt      *string
	Status            *MappingStatus
}

// SeriesKey resolves the key a mapping is stored under: the recurring series
// id when the event belongs to a series, so one mapping governs the whole
// series, otherwise the event's own id.
func SeriesKey(sourceEventID, recurringEventID string) string {
	if recurringEventID != "" {
		return recurringEventID
	}
	return sourceEventID
}

func StringPtr(s string) *string {
	return &s
}

func StatusPtr(s MappingStatus) *MappingStatus {
	return &s
}
