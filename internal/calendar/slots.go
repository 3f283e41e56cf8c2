package calendar

import (
	"sort"
	"time"
)

// FreeSlots inverts busy intervals within [timeMin, timeMax]: the returned
// slots are the gaps between merged busy periods, in order.
func FreeSlots(busy []Interval, timeMin, timeMax time.Time) []Interval {
	if !timeMax.After(timeMin) {
		return nil
	}

	merged := mergeIntervals(clampIntervals(busy, timeMin, timeMax))

	var free []Interval
	cursor := timeMin
	for _, b := range merged {
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if timeMax.After(cursor) {
		free = append(free, Interval{Start: cursor, End: timeMax})
	}
	return free
}

func clampIntervals(in []Interval, timeMin, timeMax time.Time) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.End.After(timeMin) || !timeMax.After(iv.Start) {
			continue
		}
		if iv.Start.Before(timeMin) {
			iv.Start = timeMin
		}
		if iv.End.After(timeMax) {
			iv.End = timeMax
		}
		out = append(out, iv)
	}
	return out
}

func mergeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if iv.Start.After(last.End) {
			out = append(out, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}
	return out
}
