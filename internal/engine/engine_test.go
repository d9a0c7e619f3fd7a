package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/gracechapel/calsync/internal"
)

// fakeAPI is an in-memory CalendarAPI covering the calls the engine makes.
type fakeAPI struct {
	mu       sync.Mutex
	events   map[string]map[string]*calendar.Event
	hidden   map[string]bool
	inserts  int
	patches  []*calendar.Event
	getCalls map[string]int
	listOpts map[string][]internal.ListOptions
}

func newFakeAPI(calendarIDs ...string) *fakeAPI {
	f := &fakeAPI{
		events:   make(map[string]map[string]*calendar.Event),
		hidden:   make(map[string]bool),
		getCalls: make(map[string]int),
		listOpts: make(map[string][]internal.ListOptions),
	}
	for _, id := range calendarIDs {
		f.events[id] = make(map[string]*calendar.Event)
	}
	return f
}

func (f *fakeAPI) put(calendarID string, ev *calendar.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[calendarID][ev.Id] = ev
}

// hide keeps an event readable by Get but out of listings, the way a
// bounded listing window excludes events outside it.
func (f *fakeAPI) hide(eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[eventID] = true
}

func (f *fakeAPI) List(ctx context.Context, calendarID string, opts internal.ListOptions) (*internal.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOpts[calendarID] = append(f.listOpts[calendarID], opts)
	page := &internal.EventPage{NextSyncToken: "tok-next"}
	for _, ev := range f.events[calendarID] {
		// Listings exclude deleted events and anything outside the window.
		if ev.Status == "cancelled" || f.hidden[ev.Id] {
			continue
		}
		page.Events = append(page.Events, ev)
	}
	return page, nil
}

func (f *fakeAPI) Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls[eventID]++
	ev, ok := f.events[calendarID][eventID]
	if !ok {
		return nil, &googleapi.Error{Code: http.StatusNotFound}
	}
	return ev, nil
}

func (f *fakeAPI) Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	stored := *event
	stored.Id = fmt.Sprintf("pub%d", f.inserts)
	f.events[calendarID][stored.Id] = &stored
	return &stored, nil
}

func (f *fakeAPI) Patch(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[calendarID][eventID]; !ok {
		return nil, &googleapi.Error{Code: http.StatusNotFound}
	}
	f.patches = append(f.patches, event)
	stored := *event
	stored.Id = eventID
	f.events[calendarID][eventID] = &stored
	return &stored, nil
}

func (f *fakeAPI) Delete(ctx context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// The provider keeps deleted events around with status cancelled.
	// Already-gone ids count as deleted, matching the real client.
	if ev, ok := f.events[calendarID][eventID]; ok {
		ev.Status = "cancelled"
	}
	return nil
}

// fakeStore is an in-memory MappingStore with the adapter's semantics.
type fakeStore struct {
	mu    sync.Mutex
	byKey map[string]*internal.Mapping
}

func newFakeStore() *fakeStore {
	return &fakeStore{byKey: make(map[string]*internal.Mapping)}
}

func (s *fakeStore) Ensure(ctx context.Context, sourceKey string) (*internal.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byKey[sourceKey]; ok {
		cp := *m
		return &cp, nil
	}
	m := &internal.Mapping{
		ID:            "map-" + sourceKey,
		SourceEventID: sourceKey,
		Status:        internal.StatusDraft,
	}
	s.byKey[sourceKey] = m
	cp := *m
	return &cp, nil
}

func (s *fakeStore) Get(ctx context.Context, sourceKey string) (*internal.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byKey[sourceKey]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) GetByPublicID(ctx context.Context, publicEventID string) (*internal.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if publicEventID == "" {
		return nil, nil
	}
	for _, m := range s.byKey {
		if m.PublicEventID == publicEventID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Update(ctx context.Context, sourceKey string, patch internal.MappingPatch) (*internal.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byKey[sourceKey]
	if !ok {
		return nil, internal.ErrMappingNotFound
	}
	if patch.PublicEventID != nil {
		m.PublicEventID = *patch.PublicEventID
	}
	if patch.LastPublicEventID != nil {
		m.LastPublicEventID = *patch.LastPublicEventID
	}
	if patch.PayloadHash != nil {
		m.PayloadHash = *patch.PayloadHash
	}
	if patch.LastSyncedAt != nil {
		m.LastSyncedAt = *patch.LastSyncedAt
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) All(ctx context.Context) ([]*internal.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*internal.Mapping
	for _, m := range s.byKey {
		cp := *m
		res = append(res, &cp)
	}
	return res, nil
}

const (
	internalCal = "internal@group.calendar.google.com"
	publicCal   = "public@group.calendar.google.com"
)

func newTestEngine() (*Engine, *fakeAPI, *fakeStore) {
	api := newFakeAPI(internalCal, publicCal)
	store := newFakeStore()
	eng := New(api, store, Config{
		InternalCalendarID: internalCal,
		PublicCalendarID:   publicCal,
		Identity:           "sync@gracechapel.iam.gserviceaccount.com",
	}, nil)
	return eng, api, store
}

func youthNight() *calendar.Event {
	return &calendar.Event{
		Id:          "evt1",
		Summary:     "Youth Night",
		Description: "Call Jane at 555-123-4567",
		Location:    "Room 2",
		Start:       &calendar.EventDateTime{DateTime: "2026-09-04T19:00:00-05:00", TimeZone: "America/Chicago"},
		End:         &calendar.EventDateTime{DateTime: "2026-09-04T21:00:00-05:00", TimeZone: "America/Chicago"},
	}
}
