package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/gracechapel/calsync/internal"
)

func TestPublish_SanitizesAndRecordsMapping(t *testing.T) {
	eng, api, _ := newTestEngine()
	api.put(internalCal, youthNight())

	res, err := eng.Publish(context.Background(), PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)

	assert.Equal(t, "Call Jane at [phone removed]", res.Payload.Blurb)
	assert.Equal(t, "Room 2", res.Payload.Location)
	assert.Equal(t, "evt1", res.Mapping.SourceEventID)
	assert.Equal(t, internal.StatusPublished, res.Mapping.Status)
	assert.Equal(t, "pub1", res.Mapping.PublicEventID)
	assert.NotEmpty(t, res.Mapping.PayloadHash)
	assert.NotEmpty(t, res.Mapping.LastSyncedAt)

	// The raw phone number never reached the public calendar.
	pub := api.events[publicCal]["pub1"]
	require.NotNil(t, pub)
	assert.NotContains(t, pub.Description, "555-123-4567")
}

func TestPublish_Idempotent(t *testing.T) {
	eng, api, _ := newTestEngine()
	api.put(internalCal, youthNight())
	ctx := context.Background()

	first, err := eng.Publish(ctx, PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)
	second, err := eng.Publish(ctx, PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)

	assert.Equal(t, first.Mapping.PublicEventID, second.Mapping.PublicEventID)
	assert.Equal(t, first.Mapping.PayloadHash, second.Mapping.PayloadHash)
	assert.Equal(t, 1, api.inserts, "second publish must patch, not insert")
}

func TestPublish_Overrides(t *testing.T) {
	eng, api, _ := newTestEngine()
	api.put(internalCal, youthNight())

	res, err := eng.Publish(context.Background(), PublishRequest{
		SourceEventID: "evt1",
		Overrides:     internal.PayloadOverrides{Blurb: "Games and pizza for grades 6-8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Games and pizza for grades 6-8", res.Payload.Blurb)
	assert.Equal(t, "Room 2", res.Payload.Location)
}

func TestPublish_RecurringSeriesKey(t *testing.T) {
	eng, api, store := newTestEngine()
	api.put(internalCal, &calendar.Event{
		Id:         "series",
		Summary:    "Morning Prayer",
		Location:   "Chapel",
		Start:      &calendar.EventDateTime{DateTime: "2026-09-04T07:00:00-05:00"},
		End:        &calendar.EventDateTime{DateTime: "2026-09-04T08:00:00-05:00"},
		Recurrence: []string{"RRULE:FREQ=WEEKLY;BYDAY=FR"},
	})
	api.put(internalCal, &calendar.Event{
		Id:               "series_20260904",
		RecurringEventId: "series",
		Summary:          "Morning Prayer",
	})

	res, err := eng.Publish(context.Background(), PublishRequest{
		SourceEventID:    "series_20260904",
		RecurringEventID: "series",
	})
	require.NoError(t, err)

	// One mapping governs the whole series.
	assert.Equal(t, "series", res.Mapping.SourceEventID)
	m, err := store.Get(context.Background(), "series")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, internal.StatusPublished, m.Status)
	// Location and recurrence inherited from the master.
	assert.Equal(t, "Chapel", res.Payload.Location)
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;BYDAY=FR"}, res.Payload.Recurrence)
}

func TestPublish_SourceNotFound(t *testing.T) {
	eng, _, _ := newTestEngine()

	_, err := eng.Publish(context.Background(), PublishRequest{SourceEventID: "ghost"})
	assert.ErrorIs(t, err, internal.ErrSourceEventNotFound)
}

func TestPublish_StoreUnavailableFailsBeforeProvider(t *testing.T) {
	api := newFakeAPI(internalCal, publicCal)
	api.put(internalCal, youthNight())
	eng := New(api, nil, Config{
		InternalCalendarID: internalCal,
		PublicCalendarID:   publicCal,
	}, nil)

	_, err := eng.Publish(context.Background(), PublishRequest{SourceEventID: "evt1"})
	assert.ErrorIs(t, err, internal.ErrStoreUnavailable)
	assert.Zero(t, api.getCalls["evt1"], "must not touch the provider")
}

func TestUnpublishThenRepublishRelinks(t *testing.T) {
	eng, api, _ := newTestEngine()
	api.put(internalCal, youthNight())
	ctx := context.Background()

	published, err := eng.Publish(ctx, PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)

	unpublished, err := eng.Unpublish(ctx, UnpublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)
	assert.Empty(t, unpublished.Mapping.PublicEventID)
	assert.Equal(t, internal.StatusUnpublished, unpublished.Mapping.Status)
	assert.Equal(t, published.Mapping.PublicEventID, unpublished.Mapping.LastPublicEventID)

	// The provider keeps the deleted event around as cancelled, and it
	// drops out of listings.
	pubID := published.Mapping.PublicEventID
	assert.Equal(t, "cancelled", api.events[publicCal][pubID].Status)

	// Republish patches the remembered public event id instead of
	// inserting, and must flip the cancelled event back to confirmed or
	// the "republished" event never reappears in any listing.
	republished, err := eng.Publish(ctx, PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)
	assert.Equal(t, pubID, republished.Mapping.PublicEventID)
	assert.Equal(t, 1, api.inserts)
	assert.Equal(t, "confirmed", api.events[publicCal][pubID].Status)

	snap, err := eng.Snapshot(ctx, ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, findEvent(snap.Public, pubID), "revived event must list again")
}

func TestUnpublish_ByPublicID_TolerateAlreadyGone(t *testing.T) {
	eng, api, _ := newTestEngine()
	api.put(internalCal, youthNight())
	ctx := context.Background()

	published, err := eng.Publish(ctx, PublishRequest{SourceEventID: "evt1"})
	require.NoError(t, err)

	// Staff already deleted the event by hand.
	require.NoError(t, api.Delete(ctx, publicCal, published.Mapping.PublicEventID))

	res, err := eng.Unpublish(ctx, UnpublishRequest{PublicEventID: published.Mapping.PublicEventID})
	require.NoError(t, err)
	assert.Equal(t, internal.StatusUnpublished, res.Mapping.Status)
}

func TestUnpublish_NoMapping(t *testing.T) {
	eng, _, _ := newTestEngine()

	_, err := eng.Unpublish(context.Background(), UnpublishRequest{SourceEventID: "ghost"})
	assert.ErrorIs(t, err, internal.ErrMappingNotFound)
}
