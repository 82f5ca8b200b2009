package rx

import (
	"slices"
	"time"
)

// Dates returns the dose timestamps due under schedule between from and to,
// inclusive, compared at day granularity in loc. Each qualifying day yields one
// timestamp per entry of times. The result is sorted ascending.
//
// An EveryXDays start after to, an empty bitmask, NotCurrentlyTaken, or from
// after to all yield an empty result.
func Dates(loc *time.Location, schedule Schedule, times []TimeOfDay, from, to time.Time) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	first := startOfDay(from, loc)
	last := startOfDay(to, loc)
	if first.After(last) || len(times) == 0 {
		return nil
	}

	var out []time.Time
	emit := func(day time.Time) {
		for _, t := range times {
			out = append(out, t.On(day, loc))
		}
	}

	switch s := schedule.(type) {
	case Daily:
		for day := first; !day.After(last); day = nextDay(day) {
			emit(day)
		}
	case EveryXDays:
		if s.Interval < 1 {
			return nil
		}
		start := startOfDay(s.StartDate, loc)
		if start.After(last) {
			return nil
		}
		elapsed := 0
		for day := start; !day.After(last); day = nextDay(day) {
			if elapsed%s.Interval == 0 && !day.Before(first) {
				emit(day)
			}
			elapsed++
		}
	case Weekly:
		for day := first; !day.After(last); day = nextDay(day) {
			if s.Days.Has(day.Weekday()) {
				emit(day)
			}
		}
	case Monthly:
		for day := first; !day.After(last); day = nextDay(day) {
			if s.Days.Has(day.Day()) {
				emit(day)
			}
		}
	case NotCurrentlyTaken:
		return nil
	}

	slices.SortStableFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// startOfDay returns midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// nextDay steps one calendar day. time.Date normalizes across month ends and DST.
func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}
