package availability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubRunner struct {
	output string
	err    error

	gotTask string
}

func (s *stubRunner) Run(ctx context.Context, task string) (string, error) {
	s.gotTask = task
	return s.output, s.err
}

func fixedFinder(r *stubRunner) *Finder {
	f := NewFinder(r, nil)
	f.now = func() time.Time { return time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC) }
	return f
}

func TestFindFreeSlotsParsesAgentOutput(t *testing.T) {
	r := &stubRunner{output: `[{"start":"2025-06-02T09:00:00Z","end":"2025-06-02T10:00:00Z"},{"start":"2025-06-03T14:00:00Z","end":"2025-06-03T15:00:00Z"}]`}
	slots := fixedFinder(r).FindFreeSlots(context.Background(), "2025-06-02T00:00:00Z", "2025-06-09T00:00:00Z", "UTC")

	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Start != "2025-06-02T09:00:00Z" || slots[1].End != "2025-06-03T15:00:00Z" {
		t.Fatalf("unexpected slots: %+v", slots)
	}
	if !strings.Contains(r.gotTask, "between 2025-06-02T00:00:00Z and 2025-06-09T00:00:00Z") {
		t.Fatalf("task missing range:\n%s", r.gotTask)
	}
	if !strings.Contains(r.gotTask, "Use the UTC timezone") {
		t.Fatalf("task missing timezone:\n%s", r.gotTask)
	}
}

func TestFindFreeSlotsDefaultsEmptyRange(t *testing.T) {
	r := &stubRunner{output: `[]`}
	slots := fixedFinder(r).FindFreeSlots(context.Background(), "", "", "")

	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", slots)
	}
	if !strings.Contains(r.gotTask, "between 2025-06-02T00:00:00Z and 2025-06-09T00:00:00Z") {
		t.Fatalf("expected default midnight range in task:\n%s", r.gotTask)
	}
}

func TestFindFreeSlotsReplacesMalformedTimes(t *testing.T) {
	r := &stubRunner{output: `[]`}
	fixedFinder(r).FindFreeSlots(context.Background(), "next tuesday", "2025-06-09T00:00:00Z", "UTC")

	if !strings.Contains(r.gotTask, "between 2025-06-02T00:00:00Z and 2025-06-09T00:00:00Z") {
		t.Fatalf("malformed timeMin should fall back to default:\n%s", r.gotTask)
	}
	if strings.Contains(r.gotTask, "next tuesday") {
		t.Fatalf("malformed input leaked into task:\n%s", r.gotTask)
	}
}

func TestFindFreeSlotsRunnerError(t *testing.T) {
	r := &stubRunner{err: errors.New("model unavailable")}
	slots := fixedFinder(r).FindFreeSlots(context.Background(), "", "", "")
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty slice on runner error, got %#v", slots)
	}
}

func TestFindFreeSlotsNonJSONOutput(t *testing.T) {
	r := &stubRunner{output: "Sorry, I could not reach the calendar."}
	slots := fixedFinder(r).FindFreeSlots(context.Background(), "", "", "")
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty slice on unparseable output, got %#v", slots)
	}
}
