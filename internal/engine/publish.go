package engine

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	gcal "github.com/gracechapel/calsync/calendar/google"
	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/payload"
)

// PublishRequest pushes a fresh sanitized copy of an internal event to the
// public calendar.
type PublishRequest struct {
	SourceEventID    string                    `json:"sourceEventId"`
	RecurringEventID string                    `json:"recurringEventId,omitempty"`
	Overrides        internal.PayloadOverrides `json:"payload,omitempty"`
}

// Publish builds the sanitized payload from the live internal event (plus
// its recurring master), merges manual overrides, and writes it to the
// public calendar. When the mapping already knows a public event id, even
// from before an unpublish, the same public event is patched so the provider
// identity survives re-publish cycles; otherwise a new event is inserted.
func (e *Engine) Publish(ctx context.Context, req PublishRequest) (*WriteResult, error) {
	if err := e.checkWritable(); err != nil {
		return nil, err
	}
	if req.SourceEventID == "" {
		return nil, fmt.Errorf("%w: missing source event id", internal.ErrSourceEventNotFound)
	}

	ev, err := e.api.Get(ctx, e.cfg.InternalCalendarID, req.SourceEventID)
	if err != nil {
		if gcal.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", internal.ErrSourceEventNotFound, req.SourceEventID)
		}
		return nil, fmt.Errorf("loading source event: %w", err)
	}

	seriesID := firstNonEmpty(req.RecurringEventID, ev.RecurringEventId)
	var master *calendar.Event
	if seriesID != "" && seriesID != ev.Id {
		master, err = e.api.Get(ctx, e.cfg.InternalCalendarID, seriesID)
		if err != nil {
			return nil, fmt.Errorf("loading recurring master %s: %w", seriesID, err)
		}
	}

	p := payload.Build(ev, master)
	p = payload.ApplyOverrides(p, req.Overrides)

	key := internal.SeriesKey(ev.Id, seriesID)
	mapping, err := e.store.Ensure(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ensuring mapping for %s: %w", key, err)
	}

	// A deleted provider event is left behind with status cancelled;
	// relinking through the remembered id must flip it back.
	body := payload.ToEvent(p, true)
	body.Status = "confirmed"

	var written *WriteResult
	if known := mapping.KnownPublicID(); known != "" {
		e.logger.Info("re-publishing to existing public event",
			"source", key, "public", known)
		pubEv, err := e.api.Patch(ctx, e.cfg.PublicCalendarID, known, body)
		if err != nil {
			return nil, err
		}
		written = &WriteResult{Payload: p, Event: pubEv}
	} else {
		e.logger.Info("publishing new public event", "source", key)
		pubEv, err := e.api.Insert(ctx, e.cfg.PublicCalendarID, body)
		if err != nil {
			return nil, err
		}
		written = &WriteResult{Payload: p, Event: pubEv}
	}

	hash := payload.StoredHash(p)
	written.Mapping, err = e.store.Update(ctx, key, internal.MappingPatch{
		PublicEventID:     internal.StringPtr(written.Event.Id),
		LastPublicEventID: internal.StringPtr(written.Event.Id),
		PayloadHash:       internal.StringPtr(hash),
		LastSyncedAt:      internal.StringPtr(now()),
		Status:            internal.StatusPtr(internal.StatusPublished),
	})
	if err != nil {
		return nil, fmt.Errorf("recording publish of %s: %w", key, err)
	}
	return written, nil
}
