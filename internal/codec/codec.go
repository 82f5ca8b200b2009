// Package codec defines the wire layout of medication files:
//
//	Medication := { "name": string?, "schedule": Schedule, "strength": string?, "times": [Time] }
//	Schedule   := { "type": "daily" }
//	            | { "type": "everyXDays", "interval": int, "startDate": double }
//	            | { "type": "weekly", "days": int }
//	            | { "type": "monthly", "days": int }
//	            | { "type": "notCurrentlyTaken" }
//	Time       := { "hour": int, "minute": int }
//
// The identity of a medication lives in its file name, not in the body.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medrx/internal/adapter"
	"medrx/internal/rx"
	"medrx/internal/wire"
)

// Schedule type discriminators.
const (
	TypeDaily             = "daily"
	TypeEveryXDays        = "everyXDays"
	TypeWeekly            = "weekly"
	TypeMonthly           = "monthly"
	TypeNotCurrentlyTaken = "notCurrentlyTaken"
)

// ErrUnknownScheduleType is returned for an unrecognized "type" discriminator.
var ErrUnknownScheduleType = errors.New("unknown schedule type")

// TimeAdapter maps a TimeOfDay to {"hour", "minute"}.
var TimeAdapter = adapter.For(
	adapter.Bind("hour",
		func(t rx.TimeOfDay) int { return t.Hour },
		func(t rx.TimeOfDay, h int) rx.TimeOfDay { t.Hour = h; return t },
		adapter.Ranged(adapter.Int(), 0, 23)),
	adapter.Bind("minute",
		func(t rx.TimeOfDay) int { return t.Minute },
		func(t rx.TimeOfDay, m int) rx.TimeOfDay { t.Minute = m; return t },
		adapter.Ranged(adapter.Int(), 0, 59)),
)

var everyXDaysAdapter = adapter.For(
	adapter.Bind("interval",
		func(s rx.EveryXDays) int { return s.Interval },
		func(s rx.EveryXDays, n int) rx.EveryXDays { s.Interval = n; return s },
		adapter.Int().Required()),
	adapter.Bind("startDate",
		func(s rx.EveryXDays) time.Time { return s.StartDate },
		func(s rx.EveryXDays, d time.Time) rx.EveryXDays { s.StartDate = d; return s },
		adapter.Date()),
)

var weeklyAdapter = adapter.For(
	adapter.Bind("days",
		func(s rx.Weekly) rx.WeekdayMask { return s.Days },
		func(s rx.Weekly, d rx.WeekdayMask) rx.Weekly { s.Days = d; return s },
		adapter.Integer[rx.WeekdayMask]().Required()),
)

var monthlyAdapter = adapter.For(
	adapter.Bind("days",
		func(s rx.Monthly) rx.MonthdayMask { return s.Days },
		func(s rx.Monthly, d rx.MonthdayMask) rx.Monthly { s.Days = d; return s },
		adapter.Integer[rx.MonthdayMask]().Required()),
)

// scheduleType reads the required "type" discriminator.
var scheduleType = adapter.String().Required()

// Schedule transforms the tagged union. It has no default: a missing
// schedule, a missing or unknown "type", or a missing variant key is an error.
func Schedule() adapter.Transformer[rx.Schedule] {
	return adapter.Transform(encodeSchedule, decodeSchedule)
}

func encodeSchedule(s rx.Schedule) (any, error) {
	var (
		m   map[string]any
		typ string
		err error
	)
	switch s := s.(type) {
	case rx.Daily:
		m, typ = map[string]any{}, TypeDaily
	case rx.EveryXDays:
		m, err = everyXDaysAdapter.Encode(s)
		typ = TypeEveryXDays
	case rx.Weekly:
		m, err = weeklyAdapter.Encode(s)
		typ = TypeWeekly
	case rx.Monthly:
		m, err = monthlyAdapter.Encode(s)
		typ = TypeMonthly
	case rx.NotCurrentlyTaken:
		m, typ = map[string]any{}, TypeNotCurrentlyTaken
	case nil:
		return nil, errors.New("schedule is not set")
	default:
		return nil, fmt.Errorf("unsupported schedule %T", s)
	}
	if err != nil {
		return nil, err
	}
	m["type"] = typ
	return m, nil
}

func decodeSchedule(v any) (rx.Schedule, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: want map, got %s", adapter.ErrKind, wire.KindOf(v))
	}
	raw, ok := m["type"]
	if !ok {
		return nil, &adapter.FieldError{Key: "type", Err: adapter.ErrMissingKey}
	}
	typ, err := scheduleType.Decode(raw)
	if err != nil {
		return nil, &adapter.FieldError{Key: "type", Err: err}
	}

	switch typ {
	case TypeDaily:
		return rx.Daily{}, nil
	case TypeNotCurrentlyTaken:
		return rx.NotCurrentlyTaken{}, nil
	case TypeEveryXDays:
		s, err := everyXDaysAdapter.Decode(rx.EveryXDays{}, m)
		if err != nil {
			return nil, fmt.Errorf("%s requires interval and startDate: %w", typ, err)
		}
		return s, nil
	case TypeWeekly:
		s, err := weeklyAdapter.Decode(rx.Weekly{}, m)
		if err != nil {
			return nil, fmt.Errorf("%s requires days: %w", typ, err)
		}
		return s, nil
	case TypeMonthly:
		s, err := monthlyAdapter.Decode(rx.Monthly{}, m)
		if err != nil {
			return nil, fmt.Errorf("%s requires days: %w", typ, err)
		}
		return s, nil
	default:
		return nil, &adapter.FieldError{Key: "type", Err: fmt.Errorf("%w: %q", ErrUnknownScheduleType, typ)}
	}
}

// MedicationAdapter maps a Medication body. Empty name and strength encode as nil.
var MedicationAdapter = adapter.For(
	adapter.Bind("name",
		func(m rx.Medication) *string { return optional(m.Name) },
		func(m rx.Medication, s *string) rx.Medication { m.Name = deref(s); return m },
		adapter.Optional(adapter.String(), nil)),
	adapter.Bind("schedule",
		func(m rx.Medication) rx.Schedule { return m.Schedule },
		func(m rx.Medication, s rx.Schedule) rx.Medication { m.Schedule = s; return m },
		Schedule()),
	adapter.Bind("strength",
		func(m rx.Medication) *string { return optional(m.Strength) },
		func(m rx.Medication, s *string) rx.Medication { m.Strength = deref(s); return m },
		adapter.Optional(adapter.String(), nil)),
	adapter.Bind("times",
		func(m rx.Medication) []rx.TimeOfDay { return m.Times },
		func(m rx.Medication, t []rx.TimeOfDay) rx.Medication { m.Times = t; return m },
		adapter.Array(adapter.Nested(TimeAdapter, func() rx.TimeOfDay { return rx.TimeOfDay{} }))),
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Marshal encodes the body of m.
func Marshal(m rx.Medication) ([]byte, error) {
	encoded, err := MedicationAdapter.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("encoding medication: %w", err)
	}
	data, err := wire.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("serializing medication: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a medication body and gives it the identity id.
// The result is marked persisted.
func Unmarshal(id uuid.UUID, data []byte) (rx.Medication, error) {
	v, err := wire.Parse(data)
	if err != nil {
		return rx.Medication{}, err
	}
	m, err := MedicationAdapter.Decode(rx.Medication{ID: id, Persisted: true}, v)
	if err != nil {
		return rx.Medication{}, fmt.Errorf("decoding medication: %w", err)
	}
	return m, nil
}
