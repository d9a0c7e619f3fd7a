package internal

// DefaultTitle is used when an event's summary sanitizes to empty.
const DefaultTitle = "Untitled Event"

// PublicEventPayload is the sanitized, provider-agnostic representation of an
// event as it should appear on the public calendar. Every text field has
// already passed through the sanitizer; an empty string means "no data".
// Start and End hold either an RFC3339 date-time or a plain date (all-day).
type PublicEventPayload struct {
	Title        string   `json:"title"`
	Blurb        string   `json:"blurb,omitempty"`
	Location     string   `json:"location,omitempty"`
	DisplayNotes string   `json:"displayNotes,omitempty"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	AllDay       bool     `json:"allDay"`
	TimeZone     string   `json:"timeZone,omitempty"`
	Recurrence   []string `json:"recurrence,omitempty"`
}

// PayloadOverrides carries manual text overrides supplied with a publish or
// update request. Empty fields are "not supplied" and leave the base value.
type PayloadOverrides struct {
	Title        string `json:"title,omitempty"`
	Blurb        string `json:"blurb,omitempty"`
	Location     string `json:"location,omitempty"`
	DisplayNotes string `json:"displayNotes,omitempty"`
}

// IsZero reports whether no override field was supplied.
func (o PayloadOverrides) IsZero() bool {
	return o.Title == "" && o.Blurb == "" && o.Location == "" && o.DisplayNotes == ""
}
