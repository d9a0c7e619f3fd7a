// Package payload builds the sanitized public representation of a calendar
// event and fingerprints it for change detection.
package payload

import (
	"google.golang.org/api/calendar/v3"

	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/sanitize"
)

// SharedDisplayNotesKey is the shared extended property carrying the opt-in
// public note. It is deliberately separate from the event description, which
// often contains internal logistics.
const SharedDisplayNotesKey = "displayNotes"

// Build converts a raw provider event into a PublicEventPayload. For single
// instances of a recurring series, master supplies the timing, recurrence,
// location and blurb the instance omits; the provider frequently leaves those
// off single-instance edits.
func Build(event, master *calendar.Event) internal.PublicEventPayload {
	timing := event
	if !hasTiming(event) && master != nil && hasTiming(master) {
		timing = master
	}

	p := internal.PublicEventPayload{
		Title:        sanitize.Text(event.Summary),
		Blurb:        sanitize.Text(event.Description),
		Location:     sanitize.Text(event.Location),
		DisplayNotes: sanitize.Text(displayNotes(event)),
	}
	if p.Title == "" {
		p.Title = internal.DefaultTitle
	}
	if master != nil {
		if p.Blurb == "" {
			p.Blurb = sanitize.Text(master.Description)
		}
		if p.Location == "" {
			p.Location = sanitize.Text(master.Location)
		}
	}

	if timing.Start != nil {
		p.AllDay = timing.Start.Date != "" && timing.Start.DateTime == ""
		p.Start = eventTime(timing.Start)
		p.TimeZone = timing.Start.TimeZone
	}
	if timing.End != nil {
		p.End = eventTime(timing.End)
		if p.TimeZone == "" {
			p.TimeZone = timing.End.TimeZone
		}
	}

	p.Recurrence = event.Recurrence
	if len(p.Recurrence) == 0 && master != nil {
		p.Recurrence = master.Recurrence
	}
	return p
}

// ApplyOverrides merges manual text overrides on top of a base payload.
// An override wins only when it was supplied and still has content after
// sanitization; an override that sanitizes to empty keeps the base value.
func ApplyOverrides(p internal.PublicEventPayload, o internal.PayloadOverrides) internal.PublicEventPayload {
	if s := sanitize.Text(o.Title); s != "" {
		p.Title = s
	}
	if s := sanitize.Text(o.Blurb); s != "" {
		p.Blurb = s
	}
	if s := sanitize.Text(o.Location); s != "" {
		p.Location = s
	}
	if s := sanitize.Text(o.DisplayNotes); s != "" {
		p.DisplayNotes = s
	}
	return p
}

// ToEvent renders a payload as the provider event body for an insert or
// patch. Timing fields are included only when withTiming is set; updates
// never touch timing or recurrence.
func ToEvent(p internal.PublicEventPayload, withTiming bool) *calendar.Event {
	ev := &calendar.Event{
		Summary:     p.Title,
		Description: p.Blurb,
		Location:    p.Location,
	}
	if p.DisplayNotes != "" {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{
			Shared: map[string]string{SharedDisplayNotesKey: p.DisplayNotes},
		}
	}
	if !withTiming {
		return ev
	}

	start := &calendar.EventDateTime{TimeZone: p.TimeZone}
	end := &calendar.EventDateTime{TimeZone: p.TimeZone}
	if p.AllDay {
		start.Date = p.Start
		end.Date = p.End
	} else {
		start.DateTime = p.Start
		end.DateTime = p.End
	}
	ev.Start = start
	ev.End = end
	ev.Recurrence = p.Recurrence
	return ev
}

func hasTiming(e *calendar.Event) bool {
	return e.Start != nil && (e.Start.DateTime != "" || e.Start.Date != "")
}

func eventTime(dt *calendar.EventDateTime) string {
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

func displayNotes(e *calendar.Event) string {
	if e.ExtendedProperties == nil {
		return ""
	}
	return e.ExtendedProperties.Shared[SharedDisplayNotesKey]
}
