// Package googlecal provides a client for the Google Calendar API
package googlecal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

const (
	DefaultRateLimit  = 5 // requests per second
	DefaultMaxResults = 50
)

// Client implements the CalendarClient interface
type Client struct {
	logger  *common.Logger
	limiter *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new Calendar client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetEvents returns events on the user's primary calendar between timeMin and
// timeMax, earliest first. Recurring events are expanded to single instances.
func (c *Client) GetEvents(ctx context.Context, cred *models.Credential, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrUpstreamFetch, err)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource(cred)))
	if err != nil {
		return nil, fmt.Errorf("%w: create calendar service: %v", models.ErrUpstreamFetch, err)
	}

	result, err := svc.Events.List("primary").
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", models.ErrUpstreamFetch, err)
	}

	events := make([]models.Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, formatEvent(item))
	}

	c.logger.Debug().Int("events", len(events)).Msg("Calendar events fetched")
	return events, nil
}

// formatEvent maps a Calendar API event onto the digest event shape.
// All-day events carry Date instead of DateTime.
func formatEvent(item *calendar.Event) models.Event {
	event := models.Event{
		ID:       item.Id,
		Title:    item.Summary,
		Location: item.Location,
		Status:   item.Status,
	}
	if event.Title == "" {
		event.Title = "No Title"
	}
	if item.Start != nil {
		event.Start = item.Start.DateTime
		if event.Start == "" {
			event.Start = item.Start.Date
		}
	}
	if item.End != nil {
		event.End = item.End.DateTime
		if event.End == "" {
			event.End = item.End.Date
		}
	}
	for _, a := range item.Attendees {
		event.Attendees = append(event.Attendees, models.Attendee{
			Email: a.Email,
			Name:  a.DisplayName,
		})
	}
	return event
}

// tokenSource wraps the credential's current access token. EnsureFresh has
// already run by the time a fetch happens, so no refresh happens here.
func tokenSource(cred *models.Credential) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		Expiry:      cred.Expiry,
	})
}

// Ensure Client implements CalendarClient
var _ interfaces.CalendarClient = (*Client)(nil)
