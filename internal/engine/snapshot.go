package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"

	gcal "github.com/gracechapel/calsync/calendar/google"
	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/payload"
)

// defaultListWindow bounds the public listing when an incremental sync token
// drives the internal side and no explicit window is available.
const defaultListWindow = 90 * 24 * time.Hour

// Snapshot assembles the point-in-time view of both calendars joined with
// the mapping table, with drift computed against each mapping's stored hash.
// The three list calls run concurrently; a sync token, when supplied,
// applies to the internal calendar listing and the public side keeps the
// time window.
func (e *Engine) Snapshot(ctx context.Context, opts ListOptions) (*Snapshot, error) {
	windowOnly := ListOptions{TimeMin: opts.TimeMin, TimeMax: opts.TimeMax}
	if opts.SyncToken != "" {
		// A token listing carries no window; the public side must still
		// be bounded or it re-lists the whole calendar history.
		windowOnly.TimeMin = time.Now()
		windowOnly.TimeMax = windowOnly.TimeMin.Add(defaultListWindow)
	}

	type listResult struct {
		page *internal.EventPage
		err  error
	}
	intCh := make(chan listResult, 1)
	pubCh := make(chan listResult, 1)
	go func() {
		page, err := e.api.List(ctx, e.cfg.InternalCalendarID, opts)
		intCh <- listResult{page, err}
	}()
	go func() {
		page, err := e.api.List(ctx, e.cfg.PublicCalendarID, windowOnly)
		pubCh <- listResult{page, err}
	}()

	type mappingResult struct {
		mappings []*Mapping
		err      error
	}
	mapCh := make(chan mappingResult, 1)
	go func() {
		if e.store == nil {
			mapCh <- mappingResult{}
			return
		}
		mappings, err := e.store.All(ctx)
		mapCh <- mappingResult{mappings, err}
	}()

	intRes, pubRes, mapRes := <-intCh, <-pubCh, <-mapCh
	if intRes.err != nil {
		return nil, fmt.Errorf("listing internal calendar: %w", intRes.err)
	}
	if pubRes.err != nil {
		return nil, fmt.Errorf("listing public calendar: %w", pubRes.err)
	}
	if mapRes.err != nil {
		return nil, fmt.Errorf("listing mappings: %w", mapRes.err)
	}

	masters, masterErrs := e.fetchMasters(ctx, intRes.page.Events)

	bySource := make(map[string]*Mapping)
	byPublic := make(map[string]*Mapping)
	for _, m := range mapRes.mappings {
		bySource[m.SourceEventID] = m
		if m.PublicEventID != "" {
			byPublic[m.PublicEventID] = m
		}
	}

	snap := &Snapshot{
		GeneratedAt:        now(),
		Identity:           e.cfg.Identity,
		InternalCalendarID: e.cfg.InternalCalendarID,
		PublicCalendarID:   e.cfg.PublicCalendarID,
		NextSyncToken:      intRes.page.NextSyncToken,
		Mappings:           mapRes.mappings,
	}

	publicSeen := make(map[string]*internal.SyncEvent)
	for _, ev := range pubRes.page.Events {
		p := payload.Build(ev, nil)
		se := &internal.SyncEvent{
			Side:    internal.SidePublic,
			Event:   ev,
			Payload: p,
			Hash:    payload.Hash(p),
			Mapping: byPublic[ev.Id],
		}
		// Expanded occurrences of a public series resolve through their
		// master, which is the id the mapping recorded.
		if se.Mapping == nil && ev.RecurringEventId != "" {
			se.Mapping = byPublic[ev.RecurringEventId]
			publicSeen[ev.RecurringEventId] = se
		}
		publicSeen[ev.Id] = se
		snap.Public = append(snap.Public, se)
	}

	internalSeen := make(map[string]bool)
	for _, ev := range intRes.page.Events {
		p := payload.Build(ev, masters[ev.RecurringEventId])
		se := &internal.SyncEvent{
			Side:    internal.SideInternal,
			Event:   ev,
			Payload: p,
			Hash:    payload.Hash(p),
		}
		if m, ok := bySource[ev.Id]; ok {
			se.Mapping = m
		} else if m, ok := bySource[ev.RecurringEventId]; ok {
			se.Mapping = m
		}
		if se.Mapping != nil {
			internalSeen[se.Mapping.SourceEventID] = true
		}
		if err, ok := masterErrs[ev.RecurringEventId]; ok {
			se.Drift = append(se.Drift, internal.DriftNotice{
				Kind:    internal.DriftSyncError,
				Level:   internal.LevelError,
				Message: fmt.Sprintf("could not load recurring master %s: %v", ev.RecurringEventId, err),
			})
		}
		snap.Internal = append(snap.Internal, se)
	}

	e.detectDrift(snap, publicSeen)
	snap.Notices = e.verifyUnlistedPublic(ctx, mapRes.mappings, internalSeen, publicSeen)
	return snap, nil
}

// verifyUnlistedPublic covers published mappings with no presence in the
// listings on either side: the drift pass can only attach a missing-event
// notice to listed events, so a public event that vanished while its source
// sits outside the window would otherwise go unreported. Absence from a
// bounded listing alone proves nothing; each candidate gets a direct read
// and only confirmed-gone events are reported, at snapshot level.
func (e *Engine) verifyUnlistedPublic(ctx context.Context, mappings []*Mapping, internalSeen map[string]bool, publicSeen map[string]*internal.SyncEvent) []internal.DriftNotice {
	var candidates []*Mapping
	for _, m := range mappings {
		if m.Status != internal.StatusPublished || m.PublicEventID == "" {
			continue
		}
		if _, ok := publicSeen[m.PublicEventID]; ok {
			continue
		}
		if internalSeen[m.SourceEventID] {
			// The listed internal events already carry the notice.
			continue
		}
		candidates = append(candidates, m)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		notices []internal.DriftNotice
	)
	for _, m := range candidates {
		wg.Add(1)
		go func(m *Mapping) {
			defer wg.Done()
			ev, err := e.api.Get(ctx, e.cfg.PublicCalendarID, m.PublicEventID)
			if err == nil && ev.Status != "cancelled" {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil || gcal.IsNotFound(err) {
				notices = append(notices, internal.DriftNotice{
					Kind:    internal.DriftMissingPublicEvent,
					Level:   internal.LevelError,
					Message: fmt.Sprintf("mapped public event %s for %s no longer exists on the public calendar", m.PublicEventID, m.SourceEventID),
				})
				return
			}
			notices = append(notices, internal.DriftNotice{
				Kind:    internal.DriftSyncError,
				Level:   internal.LevelError,
				Message: fmt.Sprintf("could not verify public event %s for %s: %v", m.PublicEventID, m.SourceEventID, err),
			})
		}(m)
	}
	wg.Wait()
	return notices
}

// fetchMasters loads the recurring master of every series appearing in the
// internal listing, once per series. Single-instance edits frequently omit
// location and recurrence, which must be inherited from the master. Failures
// degrade to per-event syncError drift instead of aborting the snapshot.
func (e *Engine) fetchMasters(ctx context.Context, events []*calendar.Event) (map[string]*calendar.Event, map[string]error) {
	ids := make(map[string]bool)
	for _, ev := range events {
		if ev.RecurringEventId != "" {
			ids[ev.RecurringEventId] = true
		}
	}

	masters := make(map[string]*calendar.Event, len(ids))
	errs := make(map[string]error)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			master, err := e.api.Get(ctx, e.cfg.InternalCalendarID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("fetching recurring master failed", "master", id, "err", err)
				errs[id] = err
				return
			}
			masters[id] = master
		}(id)
	}
	wg.Wait()
	return masters, errs
}
