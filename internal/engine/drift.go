package engine

import (
	"fmt"

	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/payload"
)

// driftHash picks the fingerprint compared against a mapping's stored hash.
// The stored hash of a recurring series is schedule-free, while each
// expanded occurrence carries its own start and end, so anything belonging
// to a series compares with the occurrence schedule blanked.
func driftHash(m *Mapping, se *internal.SyncEvent) string {
	isSeries := len(se.Payload.Recurrence) > 0 ||
		(se.Event != nil && se.Event.RecurringEventId != "" &&
			se.Mapping != nil && se.Mapping.SourceEventID == m.SourceEventID)
	if isSeries {
		return payload.SeriesHash(se.Payload)
	}
	return se.Hash
}

// detectDrift compares live state on both calendars against each mapping's
// stored payload hash. The stored hash is the three-way merge base: it is
// what lets a deliberate hand-edit of the public copy be told apart from an
// internal edit that left the public copy stale.
func (e *Engine) detectDrift(snap *Snapshot, publicSeen map[string]*internal.SyncEvent) {
	// Pair each mapping with the events currently visible on either side.
	type pair struct {
		internalEvents []*internal.SyncEvent
		publicEvent    *internal.SyncEvent
	}
	pairs := make(map[string]*pair)
	pairFor := func(m *Mapping) *pair {
		p, ok := pairs[m.SourceEventID]
		if !ok {
			p = &pair{}
			pairs[m.SourceEventID] = p
		}
		return p
	}
	for _, se := range snap.Internal {
		if se.Mapping != nil {
			p := pairFor(se.Mapping)
			p.internalEvents = append(p.internalEvents, se)
		}
	}
	for _, se := range snap.Public {
		if se.Mapping != nil {
			pairFor(se.Mapping).publicEvent = se
		}
	}

	for _, m := range snap.Mappings {
		p, ok := pairs[m.SourceEventID]
		if !ok {
			p = &pair{}
		}

		sourceChanged := false
		if m.PayloadHash != "" {
			for _, se := range p.internalEvents {
				if driftHash(m, se) != m.PayloadHash {
					sourceChanged = true
				}
			}
		}
		publicChanged := m.PayloadHash != "" && p.publicEvent != nil &&
			driftHash(m, p.publicEvent) != m.PayloadHash

		if sourceChanged {
			notice := internal.DriftNotice{
				Kind:    internal.DriftSourceChanged,
				Level:   internal.LevelWarning,
				Message: fmt.Sprintf("internal event %s changed since last sync; the public copy is stale", m.SourceEventID),
			}
			for _, se := range p.internalEvents {
				if driftHash(m, se) != m.PayloadHash {
					se.Drift = append(se.Drift, notice)
				}
			}
			if p.publicEvent != nil {
				p.publicEvent.Drift = append(p.publicEvent.Drift, notice)
			}
		}

		if publicChanged {
			// A public-side edit with no matching internal change is an
			// accepted customization: surfaced, but not actionable.
			level := internal.LevelInfo
			if sourceChanged {
				level = internal.LevelWarning
			}
			notice := internal.DriftNotice{
				Kind:    internal.DriftPublicChanged,
				Level:   level,
				Message: fmt.Sprintf("public event %s was edited after the last sync", m.PublicEventID),
			}
			p.publicEvent.Drift = append(p.publicEvent.Drift, notice)
			for _, se := range p.internalEvents {
				se.Drift = append(se.Drift, notice)
			}
		}

		if m.PublicEventID != "" {
			if _, ok := publicSeen[m.PublicEventID]; !ok {
				notice := internal.DriftNotice{
					Kind:    internal.DriftMissingPublicEvent,
					Level:   internal.LevelError,
					Message: fmt.Sprintf("mapped public event %s no longer exists on the public calendar", m.PublicEventID),
				}
				for _, se := range p.internalEvents {
					se.Drift = append(se.Drift, notice)
				}
			}
		}
	}

	// Public events nothing points at were created or re-pointed outside the
	// managed workflow.
	for _, se := range snap.Public {
		if se.Mapping == nil {
			se.Drift = append(se.Drift, internal.DriftNotice{
				Kind:    internal.DriftUnmapped,
				Level:   internal.LevelWarning,
				Message: fmt.Sprintf("public event %s is not linked to any internal event", se.Event.Id),
			})
		}
	}
}
