// Package calendar wraps the Google Calendar free/busy API and derives
// free slots from it. It backs the availability agent's calendar tool.
package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Client wraps the Calendar service for a single calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
}

// NewClient authenticates with a Google credentials file (service account
// or authorized user JSON) and reads the given calendar.
func NewClient(ctx context.Context, credentialsFile, calendarID string) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("calendar: credentials file is required")
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// BusyIntervals queries free/busy for the calendar in [timeMin, timeMax].
func (c *Client) BusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar: no free/busy data for %s", c.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: free/busy error for %s: %s", c.calendarID, cal.Errors[0].Reason)
	}

	busy := make([]Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy end %q: %w", p.End, err)
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy, nil
}
