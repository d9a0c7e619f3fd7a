package engine

import (
	"context"
	"fmt"

	"github.com/gracechapel/calsync/internal"
)

// UnpublishRequest takes a public event off the public calendar. The mapping
// can be resolved from either direction.
type UnpublishRequest struct {
	PublicEventID    string `json:"publicEventId,omitempty"`
	SourceEventID    string `json:"sourceEventId,omitempty"`
	RecurringEventID string `json:"recurringEventId,omitempty"`
}

// Unpublish deletes the public event, tolerating one that is already gone,
// and transitions the mapping to unpublished. LastPublicEventID is left
// untouched so a later Publish can relink to the same provider-side event.
func (e *Engine) Unpublish(ctx context.Context, req UnpublishRequest) (*WriteResult, error) {
	if err := e.checkWritable(); err != nil {
		return nil, err
	}

	mapping, err := e.resolveMapping(ctx, req.PublicEventID, req.SourceEventID, req.RecurringEventID)
	if err != nil {
		return nil, err
	}

	if mapping.PublicEventID != "" {
		e.logger.Info("removing public event",
			"source", mapping.SourceEventID, "public", mapping.PublicEventID)
		if err := e.api.Delete(ctx, e.cfg.PublicCalendarID, mapping.PublicEventID); err != nil {
			return nil, err
		}
	}

	updated, err := e.store.Update(ctx, mapping.SourceEventID, internal.MappingPatch{
		PublicEventID: internal.StringPtr(""),
		LastSyncedAt:  internal.StringPtr(now()),
		Status:        internal.StatusPtr(internal.StatusUnpublished),
	})
	if err != nil {
		return nil, fmt.Errorf("recording unpublish of %s: %w", mapping.SourceEventID, err)
	}
	return &WriteResult{Mapping: updated}, nil
}
