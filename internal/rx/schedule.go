package rx

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// Schedule is the recurrence rule of a medication. The set of variants is closed:
// Daily, EveryXDays, Weekly, Monthly and NotCurrentlyTaken. Consumers switch on
// the concrete type and must handle every variant.
type Schedule interface {
	isSchedule()
	String() string
}

// Daily is due every day.
type Daily struct{}

// EveryXDays is due every Interval days counting from StartDate.
// Interval must be positive; that is the caller's responsibility.
type EveryXDays struct {
	Interval  int
	StartDate time.Time
}

// Weekly is due on the weekdays whose bit is set (bit 0 = Sunday).
type Weekly struct {
	Days WeekdayMask
}

// Monthly is due on the days of month whose bit is set (bit 0 = day 1).
type Monthly struct {
	Days MonthdayMask
}

// NotCurrentlyTaken is never due.
type NotCurrentlyTaken struct{}

func (Daily) isSchedule()             {}
func (EveryXDays) isSchedule()        {}
func (Weekly) isSchedule()            {}
func (Monthly) isSchedule()           {}
func (NotCurrentlyTaken) isSchedule() {}

// WeekdayMask flags weekdays; bit i is time.Weekday(i).
type WeekdayMask uint8

// AllWeekdays has every weekday set.
const AllWeekdays WeekdayMask = 0b1111111

// WeekdaysOf builds a mask from weekdays.
func WeekdaysOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

// Has reports whether d is set.
func (m WeekdayMask) Has(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// Len returns the number of weekdays set.
func (m WeekdayMask) Len() int {
	return bits.OnesCount8(uint8(m & AllWeekdays))
}

// MonthdayMask flags days of month; bit i is day i+1.
type MonthdayMask uint32

// MonthdaysOf builds a mask from 1-based days of month. Days outside 1..31 are ignored.
func MonthdaysOf(days ...int) MonthdayMask {
	var m MonthdayMask
	for _, d := range days {
		if d >= 1 && d <= 31 {
			m |= 1 << uint(d-1)
		}
	}
	return m
}

// Has reports whether the 1-based day of month is set.
func (m MonthdayMask) Has(day int) bool {
	if day < 1 || day > 31 {
		return false
	}
	return m&(1<<uint(day-1)) != 0
}

// Days returns the set days of month in ascending order.
func (m MonthdayMask) Days() []int {
	var out []int
	for d := 1; d <= 31; d++ {
		if m.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

var weekdayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func (Daily) String() string { return "daily" }

func (s EveryXDays) String() string {
	return fmt.Sprintf("every:%d:%s", s.Interval, s.StartDate.Format(time.DateOnly))
}

func (s Weekly) String() string {
	var names []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Days.Has(d) {
			names = append(names, weekdayNames[d])
		}
	}
	return "weekly:" + strings.Join(names, ",")
}

func (s Monthly) String() string {
	days := s.Days.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return "monthly:" + strings.Join(parts, ",")
}

func (NotCurrentlyTaken) String() string { return "off" }

// ParseSchedule parses the text form produced by Schedule.String:
//
//	daily
//	every:<n>:<YYYY-MM-DD>
//	weekly:<sun,mon,...>
//	monthly:<1,15,...>
//	off
//
// Start dates are interpreted as midnight in loc.
func ParseSchedule(s string, loc *time.Location) (Schedule, error) {
	kind, args, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch kind {
	case "daily":
		return Daily{}, nil
	case "off", "none":
		return NotCurrentlyTaken{}, nil
	case "every":
		n, date, ok := strings.Cut(args, ":")
		if !ok {
			return nil, fmt.Errorf("invalid schedule %q: want every:<n>:<YYYY-MM-DD>", s)
		}
		interval, err := strconv.Atoi(n)
		if err != nil || interval < 1 {
			return nil, fmt.Errorf("invalid interval in %q: must be a positive integer", s)
		}
		start, err := time.ParseInLocation(time.DateOnly, date, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid start date in %q: %w", s, err)
		}
		return EveryXDays{Interval: interval, StartDate: start}, nil
	case "weekly":
		var mask WeekdayMask
		for _, name := range splitList(args) {
			d, ok := parseWeekday(name)
			if !ok {
				return nil, fmt.Errorf("invalid weekday %q in %q", name, s)
			}
			mask |= WeekdaysOf(d)
		}
		return Weekly{Days: mask}, nil
	case "monthly":
		var mask MonthdayMask
		for _, part := range splitList(args) {
			d, err := strconv.Atoi(part)
			if err != nil || d < 1 || d > 31 {
				return nil, fmt.Errorf("invalid day of month %q in %q", part, s)
			}
			mask |= MonthdaysOf(d)
		}
		return Monthly{Days: mask}, nil
	default:
		return nil, fmt.Errorf("unknown schedule %q", s)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseWeekday(name string) (time.Weekday, bool) {
	for i, n := range weekdayNames {
		if strings.HasPrefix(name, n) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// EqualSchedules reports whether a and b are the same rule.
// EveryXDays start dates compare as instants.
func EqualSchedules(a, b Schedule) bool {
	switch a := a.(type) {
	case Daily:
		_, ok := b.(Daily)
		return ok
	case EveryXDays:
		o, ok := b.(EveryXDays)
		return ok && a.Interval == o.Interval && a.StartDate.Equal(o.StartDate)
	case Weekly:
		o, ok := b.(Weekly)
		return ok && a.Days == o.Days
	case Monthly:
		o, ok := b.(Monthly)
		return ok && a.Days == o.Days
	case NotCurrentlyTaken:
		_, ok := b.(NotCurrentlyTaken)
		return ok
	default:
		return false
	}
}
