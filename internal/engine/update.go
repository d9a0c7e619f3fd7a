package engine

import (
	"context"
	"fmt"

	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/payload"
)

// UpdateRequest corrects the public-facing copy of an already published
// event. Either the public event id or the source key must be supplied.
type UpdateRequest struct {
	PublicEventID    string                    `json:"publicEventId,omitempty"`
	SourceEventID    string                    `json:"sourceEventId,omitempty"`
	RecurringEventID string                    `json:"recurringEventId,omitempty"`
	Overrides        internal.PayloadOverrides `json:"payload"`
}

// Update applies manual text overrides on top of whatever is currently live
// on the public calendar, not on top of the internal source: Update corrects
// the public copy, Publish pushes a fresh one. Timing and recurrence are
// never touched, and an event that was never published cannot be updated.
func (e *Engine) Update(ctx context.Context, req UpdateRequest) (*WriteResult, error) {
	if err := e.checkWritable(); err != nil {
		return nil, err
	}

	mapping, err := e.resolveMapping(ctx, req.PublicEventID, req.SourceEventID, req.RecurringEventID)
	if err != nil {
		return nil, err
	}

	known := mapping.KnownPublicID()
	if known == "" {
		return nil, fmt.Errorf("%w: %s", internal.ErrNotPublished, mapping.SourceEventID)
	}

	pubEv, err := e.api.Get(ctx, e.cfg.PublicCalendarID, known)
	if err != nil {
		return nil, fmt.Errorf("loading public event %s: %w", known, err)
	}

	p := payload.Build(pubEv, nil)
	p = payload.ApplyOverrides(p, req.Overrides)

	e.logger.Info("updating public event", "source", mapping.SourceEventID, "public", known)
	patched, err := e.api.Patch(ctx, e.cfg.PublicCalendarID, known, payload.ToEvent(p, false))
	if err != nil {
		return nil, err
	}

	hash := payload.StoredHash(p)
	updated, err := e.store.Update(ctx, mapping.SourceEventID, internal.MappingPatch{
		PublicEventID:     internal.StringPtr(known),
		LastPublicEventID: internal.StringPtr(known),
		PayloadHash:       internal.StringPtr(hash),
		LastSyncedAt:      internal.StringPtr(now()),
		Status:            internal.StatusPtr(internal.StatusPublished),
	})
	if err != nil {
		return nil, fmt.Errorf("recording update of %s: %w", mapping.SourceEventID, err)
	}
	return &WriteResult{Mapping: updated, Payload: p, Event: patched}, nil
}

// resolveMapping finds the mapping either by public event id or by source
// key, so operations can start from either direction.
func (e *Engine) resolveMapping(ctx context.Context, publicEventID, sourceEventID, recurringEventID string) (*Mapping, error) {
	var (
		mapping *Mapping
		err     error
	)
	if publicEventID != "" {
		mapping, err = e.store.GetByPublicID(ctx, publicEventID)
	} else {
		mapping, err = e.store.Get(ctx, internal.SeriesKey(sourceEventID, recurringEventID))
	}
	if err != nil {
		return nil, fmt.Errorf("resolving mapping: %w", err)
	}
	if mapping == nil {
		return nil, internal.ErrMappingNotFound
	}
	return mapping, nil
}
