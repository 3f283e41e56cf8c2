package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const wireLayout = "2006-01-02T15:04:05Z"

// busyLister is the slice of Client the tool needs; tests substitute it.
type busyLister interface {
	BusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error)
}

// FreeSlotsTool exposes free-slot search to the agent as a function tool.
type FreeSlotsTool struct {
	client busyLister
}

func NewFreeSlotsTool(client *Client) *FreeSlotsTool {
	return &FreeSlotsTool{client: client}
}

func (t *FreeSlotsTool) Name() string { return "calendar_find_free_slots" }

func (t *FreeSlotsTool) Description() string {
	return "Find free time slots in the calendar between two timestamps. Returns a JSON array of {start, end} objects."
}

func (t *FreeSlotsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timeMin": map[string]any{
				"type":        "string",
				"description": "Start of the search range (RFC3339, e.g. 2025-01-01T00:00:00Z)",
			},
			"timeMax": map[string]any{
				"type":        "string",
				"description": "End of the search range (RFC3339, e.g. 2025-01-08T00:00:00Z)",
			},
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name for interpreting the range (default UTC)",
			},
		},
		"required": []string{"timeMin", "timeMax"},
	}
}

func (t *FreeSlotsTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TimeMin  string `json:"timeMin"`
		TimeMax  string `json:"timeMax"`
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("calendar: decode tool arguments: %w", err)
	}

	loc := time.UTC
	if in.Timezone != "" {
		l, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return "", fmt.Errorf("calendar: unknown timezone %q", in.Timezone)
		}
		loc = l
	}

	timeMin, err := parseWireTime(in.TimeMin, loc)
	if err != nil {
		return "", fmt.Errorf("calendar: invalid timeMin: %w", err)
	}
	timeMax, err := parseWireTime(in.TimeMax, loc)
	if err != nil {
		return "", fmt.Errorf("calendar: invalid timeMax: %w", err)
	}

	busy, err := t.client.BusyIntervals(ctx, timeMin, timeMax)
	if err != nil {
		return "", err
	}

	type slot struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	free := FreeSlots(busy, timeMin, timeMax)
	slots := make([]slot, 0, len(free))
	for _, iv := range free {
		slots = append(slots, slot{
			Start: iv.Start.UTC().Format(wireLayout),
			End:   iv.End.UTC().Format(wireLayout),
		})
	}

	out, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("calendar: encode slots: %w", err)
	}
	return string(out), nil
}

func parseWireTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
}
