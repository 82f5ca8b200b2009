package rx

import (
	"testing"
	"time"
)

func jan(day int) time.Time {
	return time.Date(2015, time.January, day, 0, 0, 0, 0, time.UTC)
}

func mustTimes(t *testing.T, values ...string) []TimeOfDay {
	t.Helper()
	out := make([]TimeOfDay, len(values))
	for i, v := range values {
		tod, err := ParseTimeOfDay(v)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q) error = %v", v, err)
		}
		out[i] = tod
	}
	return out
}

// days returns the distinct days of month in ts, in order.
func days(ts []time.Time) []int {
	var out []int
	for _, t := range ts {
		if d := t.Day(); len(out) == 0 || out[len(out)-1] != d {
			out = append(out, d)
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDates_DailyFourTimes(t *testing.T) {
	times := mustTimes(t, "01:00", "02:00", "03:00", "04:00")

	got := Dates(time.UTC, Daily{}, times, jan(1), jan(10))

	if len(got) != 40 {
		t.Fatalf("len = %d, want 40", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Before(got[i]) {
			t.Fatalf("result not ascending at %d: %v then %v", i, got[i-1], got[i])
		}
	}
	perDay := make(map[int]int)
	for _, ts := range got {
		perDay[ts.Day()]++
	}
	for d := 1; d <= 10; d++ {
		if perDay[d] != 4 {
			t.Errorf("day %d has %d timestamps, want 4", d, perDay[d])
		}
	}
	if want := time.Date(2015, 1, 1, 1, 0, 0, 0, time.UTC); !got[0].Equal(want) {
		t.Errorf("first = %v, want %v", got[0], want)
	}
}

func TestDates_SortsUnorderedTimes(t *testing.T) {
	got := Dates(time.UTC, Daily{}, mustTimes(t, "20:00", "08:00"), jan(1), jan(1))

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Hour() != 8 || got[1].Hour() != 20 {
		t.Errorf("got %v, want 08:00 before 20:00", got)
	}
}

func TestDates_Schedules(t *testing.T) {
	times := mustTimes(t, "09:00")

	tests := []struct {
		name     string
		schedule Schedule
		from, to time.Time
		want     []int
	}{
		{
			name:     "every 5 days from the 1st",
			schedule: EveryXDays{Interval: 5, StartDate: time.Date(2015, 1, 1, 1, 0, 0, 0, time.UTC)},
			from:     jan(1), to: jan(10),
			want: []int{1, 6},
		},
		{
			name:     "every 3 days starting before the range",
			schedule: EveryXDays{Interval: 3, StartDate: time.Date(2014, 12, 30, 0, 0, 0, 0, time.UTC)},
			from:     jan(1), to: jan(10),
			want: []int{2, 5, 8},
		},
		{
			name:     "every x days starting after the range",
			schedule: EveryXDays{Interval: 1, StartDate: jan(20)},
			from:     jan(1), to: jan(10),
			want: nil,
		},
		{
			name:     "every x days with zero interval",
			schedule: EveryXDays{Interval: 0, StartDate: jan(1)},
			from:     jan(1), to: jan(10),
			want: nil,
		},
		{
			name:     "weekly empty mask",
			schedule: Weekly{Days: 0},
			from:     jan(1), to: jan(31),
			want: nil,
		},
		{
			name:     "weekly all days",
			schedule: Weekly{Days: AllWeekdays},
			from:     jan(1), to: jan(7),
			want: []int{1, 2, 3, 4, 5, 6, 7},
		},
		{
			// 2015-01-01 is a Thursday.
			name:     "weekly mondays and thursdays",
			schedule: Weekly{Days: WeekdaysOf(time.Monday, time.Thursday)},
			from:     jan(1), to: jan(14),
			want: []int{1, 5, 8, 12},
		},
		{
			name:     "monthly first day only",
			schedule: Monthly{Days: 0b1},
			from:     jan(1), to: time.Date(2015, 3, 31, 0, 0, 0, 0, time.UTC),
			want: []int{1, 1, 1},
		},
		{
			name:     "monthly 31st skips short months",
			schedule: Monthly{Days: MonthdaysOf(31)},
			from:     jan(1), to: time.Date(2015, 4, 30, 0, 0, 0, 0, time.UTC),
			want: []int{31, 31},
		},
		{
			name:     "monthly empty mask",
			schedule: Monthly{Days: 0},
			from:     jan(1), to: jan(31),
			want: nil,
		},
		{
			name:     "not currently taken",
			schedule: NotCurrentlyTaken{},
			from:     jan(1), to: jan(31),
			want: nil,
		},
		{
			name:     "from after to",
			schedule: Daily{},
			from:     jan(10), to: jan(1),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dates(time.UTC, tt.schedule, times, tt.from, tt.to)

			var gotDays []int
			for _, ts := range got {
				gotDays = append(gotDays, ts.Day())
			}
			if !equalInts(gotDays, tt.want) {
				t.Errorf("days = %v, want %v", gotDays, tt.want)
			}
		})
	}
}

func TestDates_NoTimes(t *testing.T) {
	if got := Dates(time.UTC, Daily{}, nil, jan(1), jan(10)); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDates_RangeIsDayGranular(t *testing.T) {
	from := time.Date(2015, 1, 1, 23, 0, 0, 0, time.UTC)
	to := time.Date(2015, 1, 2, 0, 30, 0, 0, time.UTC)

	got := Dates(time.UTC, Daily{}, mustTimes(t, "08:00"), from, to)
	if !equalInts(days(got), []int{1, 2}) {
		t.Errorf("days = %v, want [1 2]", days(got))
	}
}

func TestDates_Location(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}

	t.Run("timestamps are wall clock in loc", func(t *testing.T) {
		got := Dates(ny, Daily{}, mustTimes(t, "08:00"), time.Date(2015, 1, 1, 0, 0, 0, 0, ny), time.Date(2015, 1, 1, 0, 0, 0, 0, ny))
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if want := time.Date(2015, 1, 1, 13, 0, 0, 0, time.UTC); !got[0].Equal(want) {
			t.Errorf("got %v, want %v", got[0].UTC(), want)
		}
	})

	t.Run("dst transition keeps wall clock", func(t *testing.T) {
		from := time.Date(2015, 3, 7, 0, 0, 0, 0, ny)
		to := time.Date(2015, 3, 9, 0, 0, 0, 0, ny)
		got := Dates(ny, Daily{}, mustTimes(t, "08:00"), from, to)
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		for _, ts := range got {
			if ts.In(ny).Hour() != 8 {
				t.Errorf("%v is not 08:00 local", ts)
			}
		}
	})

	t.Run("every x days counts calendar days across dst", func(t *testing.T) {
		start := time.Date(2015, 3, 7, 0, 0, 0, 0, ny)
		got := Dates(ny, EveryXDays{Interval: 2, StartDate: start}, mustTimes(t, "08:00"), start, time.Date(2015, 3, 11, 0, 0, 0, 0, ny))
		if !equalInts(days(got), []int{7, 9, 11}) {
			t.Errorf("days = %v, want [7 9 11]", days(got))
		}
	})
}

func TestMedication_DoseTimes_NilSchedule(t *testing.T) {
	m := Medication{Name: "x", Times: mustTimes(t, "08:00")}
	if got := m.DoseTimes(time.UTC, jan(1), jan(10)); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
