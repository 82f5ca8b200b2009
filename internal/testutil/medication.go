package testutil

import (
	"testing"
	"time"

	"medrx/internal/rx"
)

// Times parses "HH:MM" strings, failing the test on a bad value.
func Times(t *testing.T, values ...string) []rx.TimeOfDay {
	t.Helper()

	out := make([]rx.TimeOfDay, len(values))
	for i, v := range values {
		tod, err := rx.ParseTimeOfDay(v)
		if err != nil {
			t.Fatalf("bad time of day %q: %v", v, err)
		}
		out[i] = tod
	}
	return out
}

// Date returns midnight of the given day in UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Aspirin is a daily draft taken at 08:00 and 20:00.
func Aspirin(t *testing.T) rx.Medication {
	t.Helper()
	return rx.NewMedication("Aspirin", "100 mg", rx.Daily{}, Times(t, "08:00", "20:00"))
}

// Ibuprofen is a draft taken every other day at 12:00, starting 2015-01-01.
func Ibuprofen(t *testing.T) rx.Medication {
	t.Helper()
	return rx.NewMedication("Ibuprofen", "", rx.EveryXDays{Interval: 2, StartDate: Date(2015, 1, 1)}, Times(t, "12:00"))
}

// Vitamin is a draft taken on Mondays and Thursdays at 09:30.
func Vitamin(t *testing.T) rx.Medication {
	t.Helper()
	return rx.NewMedication("Vitamin D", "1000 IU", rx.Weekly{Days: rx.WeekdaysOf(time.Monday, time.Thursday)}, Times(t, "09:30"))
}

// WaitFor receives one value from ch or fails the test after a timeout.
func WaitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while waiting")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}
