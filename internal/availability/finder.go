// Package availability turns "find me free slots" into an agent task and
// parses the agent's reply. The whole flow is best-effort: any failure
// degrades to an empty slot list, never an error to the caller.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"call-scheduler/internal/agent"
	"call-scheduler/pkg/metrics"
)

// WireLayout is the fixed wire timestamp format for slot boundaries.
const WireLayout = "2006-01-02T15:04:05Z"

// TimeSlot is a contiguous free interval, both ends in WireLayout.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Finder struct {
	runner agent.Runner
	log    *slog.Logger
	now    func() time.Time
}

func NewFinder(runner agent.Runner, log *slog.Logger) *Finder {
	if log == nil {
		log = slog.Default()
	}
	return &Finder{runner: runner, log: log, now: time.Now}
}

// FindFreeSlots asks the agent for free slots between timeMin and timeMax
// (defaults: today's midnight and midnight seven days out). Malformed time
// strings are replaced with the computed defaults before the task is built,
// so the agent always sees a valid range.
func (f *Finder) FindFreeSlots(ctx context.Context, timeMin, timeMax, timezone string) []TimeSlot {
	now := f.now().UTC()
	defaultMin := midnight(now)
	defaultMax := midnight(now.AddDate(0, 0, 7))

	if timeMin == "" {
		timeMin = defaultMin
	} else if _, err := time.Parse(WireLayout, timeMin); err != nil {
		f.log.Warn("invalid timeMin, using default", "timeMin", timeMin, "default", defaultMin)
		timeMin = defaultMin
	}
	if timeMax == "" {
		timeMax = defaultMax
	} else if _, err := time.Parse(WireLayout, timeMax); err != nil {
		f.log.Warn("invalid timeMax, using default", "timeMax", timeMax, "default", defaultMax)
		timeMax = defaultMax
	}
	if timezone == "" {
		timezone = "UTC"
	}

	task := fmt.Sprintf(
		"Get free slots between %s and %s and return them in a list of json objects where each slot is a json object with start and end times. "+
			"DON'T ADD ANY COMMENTS OR ADDITIONAL TEXT. Just a list with json objects. No need to name the list as well! Use the %s timezone",
		timeMin, timeMax, timezone)

	output, err := f.runner.Run(ctx, task)
	if err != nil {
		f.log.Warn("availability agent failed", "err", err)
		metrics.SlotLookups.WithLabelValues("empty").Inc()
		return []TimeSlot{}
	}

	var slots []TimeSlot
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &slots); err != nil {
		f.log.Warn("agent output is not a JSON slot list", "err", err, "output", output)
		metrics.SlotLookups.WithLabelValues("empty").Inc()
		return []TimeSlot{}
	}
	if slots == nil {
		slots = []TimeSlot{}
	}

	metrics.SlotLookups.WithLabelValues("ok").Inc()
	return slots
}

func midnight(t time.Time) string {
	return t.Format("2006-01-02") + "T00:00:00Z"
}
