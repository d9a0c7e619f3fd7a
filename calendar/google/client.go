// Package google wraps the Google Calendar API for the two calendar
// identities the sync engine addresses.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goauth "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/gracechapel/calsync/internal"
)

// pageSize bounds every listing call.
const pageSize = 250

const defaultSleep = 5 * time.Second

// Client is the authenticated provider handle. It holds no per-request state
// and is safe to share across concurrent requests; construct it once at
// service start and pass it by reference.
type Client struct {
	svc      *calendar.Service
	limiter  *rate.Limiter
	identity string
	labels   map[string]string
	logger   *slog.Logger
}

// NewClient authenticates with a service-account key, optionally
// impersonating a Workspace user. Impersonation is required when the bare
// service account has not been individually granted each calendar.
// labels maps calendar ids to the configuration variable that supplied them,
// so access errors can tell the operator what to fix.
func NewClient(ctx context.Context, credJSON []byte, impersonate string, labels map[string]string, logger *slog.Logger) (*Client, error) {
	cfg, err := goauth.JWTConfigFromJSON(credJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing service account key: %w", err)
	}

	identity := cfg.Email
	if impersonate != "" {
		cfg.Subject = impersonate
		identity = fmt.Sprintf("%s (impersonated by %s)", impersonate, cfg.Email)
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("google: creating calendar service: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:      svc,
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		identity: identity,
		labels:   labels,
		logger:   logger,
	}, nil
}

// Identity returns the effective identity provider calls are issued as.
func (c *Client) Identity() string {
	return c.identity
}

// List pages through all matching events of a calendar. It always requests
// single, expanded instances ordered by start time; a sync token, when given,
// replaces the time window since the provider rejects the combination.
func (c *Client) List(ctx context.Context, calendarID string, opts internal.ListOptions) (*internal.EventPage, error) {
	page := &internal.EventPage{}

	var pageToken string
	for {
		call := c.svc.Events.List(calendarID).
			Context(ctx).
			SingleEvents(true).
			MaxResults(pageSize)
		if opts.SyncToken != "" {
			call = call.SyncToken(opts.SyncToken)
		} else {
			call = call.ShowDeleted(false).OrderBy("startTime")
			if !opts.TimeMin.IsZero() {
				call = call.TimeMin(opts.TimeMin.Format(time.RFC3339))
			}
			if !opts.TimeMax.IsZero() {
				call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
			}
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := do(c, ctx, calendarID, "list", func() (*calendar.Events, error) {
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		page.Events = append(page.Events, events.Items...)
		if events.NextSyncToken != "" {
			page.NextSyncToken = events.NextSyncToken
		}
		pageToken = events.NextPageToken
		if pageToken == "" {
			return page, nil
		}
	}
}

// Get loads a single event.
func (c *Client) Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	return do(c, ctx, calendarID, "get", func() (*calendar.Event, error) {
		return c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	})
}

// Insert creates a new event.
func (c *Client) Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return do(c, ctx, calendarID, "insert", func() (*calendar.Event, error) {
		return c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	})
}

// Patch applies a partial update to an existing event.
func (c *Client) Patch(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return do(c, ctx, calendarID, "patch", func() (*calendar.Event, error) {
		return c.svc.Events.Patch(calendarID, eventID, event).Context(ctx).Do()
	})
}

// Delete removes an event. An event that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	_, err := do(c, ctx, calendarID, "delete", func() (struct{}, error) {
		return struct{}{}, c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

// do wraps one provider call with rate limiting, a bounded rate-limit retry
// and error classification.
func do[T any](c *Client, ctx context.Context, calendarID, op string, fn func() (T, error)) (T, error) {
	var zero T
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if isRateLimited(err) {
			c.logger.Warn("google: rate limited, backing off",
				"calendar", calendarID, "op", op, "sleep", defaultSleep)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(defaultSleep):
			}
			continue
		}
		return zero, c.classify(err, calendarID)
	}
}
