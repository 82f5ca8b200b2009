package codec_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"medrx/internal/adapter"
	"medrx/internal/codec"
	"medrx/internal/rx"
	"medrx/internal/testutil"
	"medrx/internal/wire"
)

func TestMarshal_RoundTrip(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		med  rx.Medication
	}{
		{name: "daily", med: testutil.Aspirin(t)},
		{name: "every x days", med: testutil.Ibuprofen(t)},
		{name: "weekly", med: testutil.Vitamin(t)},
		{name: "monthly", med: rx.NewMedication("B12", "1 mg", rx.Monthly{Days: rx.MonthdaysOf(1, 15, 31)}, testutil.Times(t, "07:15"))},
		{name: "not currently taken", med: rx.NewMedication("Old", "", rx.NotCurrentlyTaken{}, nil)},
		{name: "unnamed without times", med: rx.NewMedication("", "", rx.Daily{}, nil)},
		{name: "sub-second start date", med: rx.NewMedication("X", "", rx.EveryXDays{Interval: 3, StartDate: start.Add(1500 * time.Microsecond)}, testutil.Times(t, "00:00", "23:59"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Marshal(tt.med)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			id := testutil.SeqID(7)
			got, err := codec.Unmarshal(id, data)
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			if got.ID != id {
				t.Errorf("ID = %v, want %v", got.ID, id)
			}
			if !got.Persisted {
				t.Error("Unmarshal() should mark the medication persisted")
			}
			if !got.Equivalent(tt.med) {
				t.Errorf("round trip = %+v, want %+v", got, tt.med)
			}
		})
	}
}

func TestMarshal_Layout(t *testing.T) {
	data, err := codec.Marshal(rx.NewMedication("", "", rx.Weekly{Days: rx.WeekdaysOf(time.Sunday, time.Saturday)}, testutil.Times(t, "08:05")))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	v, err := wire.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	m := v.(map[string]any)

	if m["name"] != nil || m["strength"] != nil {
		t.Errorf("unset name and strength should encode as nil, got %#v and %#v", m["name"], m["strength"])
	}
	if _, ok := m["name"]; !ok {
		t.Error("name key should be present")
	}

	sched := m["schedule"].(map[string]any)
	if sched["type"] != codec.TypeWeekly {
		t.Errorf("type = %#v, want %q", sched["type"], codec.TypeWeekly)
	}
	if days, _ := adapter.Int().Decode(sched["days"]); days != 0b1000001 {
		t.Errorf("days = %#v, want 65", sched["days"])
	}

	times := m["times"].([]any)
	if len(times) != 1 {
		t.Fatalf("times = %#v, want one entry", times)
	}
	tod := times[0].(map[string]any)
	if h, _ := adapter.Int().Decode(tod["hour"]); h != 8 {
		t.Errorf("hour = %#v, want 8", tod["hour"])
	}
	if mi, _ := adapter.Int().Decode(tod["minute"]); mi != 5 {
		t.Errorf("minute = %#v, want 5", tod["minute"])
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	a, err := codec.Marshal(testutil.Vitamin(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := codec.Marshal(testutil.Vitamin(t))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("encoding the same medication twice produced different bytes")
	}
}

func TestMarshal_Errors(t *testing.T) {
	if _, err := codec.Marshal(rx.NewMedication("X", "", nil, nil)); err == nil {
		t.Error("Marshal() without a schedule should fail")
	}

	bad := rx.NewMedication("X", "", rx.Daily{}, []rx.TimeOfDay{{Hour: 24}})
	if _, err := codec.Marshal(bad); !errors.Is(err, adapter.ErrRange) {
		t.Errorf("Marshal() error = %v, want ErrRange", err)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	body := func(schedule any) map[string]any {
		return map[string]any{
			"name":     "X",
			"schedule": schedule,
			"strength": nil,
			"times":    []any{},
		}
	}

	tests := []struct {
		name    string
		in      any
		wantErr error
		wantKey string
		wantMsg string
	}{
		{
			name:    "missing schedule",
			in:      map[string]any{"name": "X"},
			wantErr: adapter.ErrMissingKey,
			wantKey: "schedule",
		},
		{
			name:    "missing type",
			in:      body(map[string]any{"days": int64(1)}),
			wantErr: adapter.ErrMissingKey,
			wantKey: "schedule.type",
		},
		{
			name:    "unknown type",
			in:      body(map[string]any{"type": "hourly"}),
			wantErr: codec.ErrUnknownScheduleType,
			wantKey: "schedule.type",
		},
		{
			name:    "type is not a string",
			in:      body(map[string]any{"type": int64(1)}),
			wantErr: adapter.ErrKind,
			wantKey: "schedule.type",
		},
		{
			name:    "schedule is not a map",
			in:      body("daily"),
			wantErr: adapter.ErrKind,
			wantKey: "schedule",
		},
		{
			name:    "every x days without interval",
			in:      body(map[string]any{"type": "everyXDays", "startDate": 0.0}),
			wantErr: adapter.ErrMissingKey,
			wantMsg: "interval",
		},
		{
			name:    "every x days without start date",
			in:      body(map[string]any{"type": "everyXDays", "interval": int64(2)}),
			wantErr: adapter.ErrMissingKey,
			wantMsg: "startDate",
		},
		{
			name:    "weekly without days",
			in:      body(map[string]any{"type": "weekly"}),
			wantErr: adapter.ErrMissingKey,
			wantMsg: "days",
		},
		{
			name:    "monthly without days",
			in:      body(map[string]any{"type": "monthly"}),
			wantErr: adapter.ErrMissingKey,
			wantMsg: "days",
		},
		{
			name:    "weekly days out of range",
			in:      body(map[string]any{"type": "weekly", "days": int64(256)}),
			wantErr: adapter.ErrRange,
			wantMsg: "days",
		},
		{
			name: "hour out of range",
			in: map[string]any{
				"schedule": map[string]any{"type": "daily"},
				"times":    []any{map[string]any{"hour": int64(24), "minute": int64(0)}},
			},
			wantErr: adapter.ErrRange,
			wantKey: "times[0].hour",
		},
		{
			name:    "name is not a string",
			in:      map[string]any{"name": int64(3), "schedule": map[string]any{"type": "daily"}},
			wantErr: adapter.ErrKind,
			wantKey: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := wire.Marshal(tt.in)
			if err != nil {
				t.Fatalf("wire.Marshal() error = %v", err)
			}

			_, err = codec.Unmarshal(testutil.SeqID(1), data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Unmarshal() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantKey != "" {
				var fe *adapter.FieldError
				if !errors.As(err, &fe) || fe.Key != tt.wantKey {
					t.Errorf("Unmarshal() error = %v, want key %q", err, tt.wantKey)
				}
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Unmarshal() error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestUnmarshal_MinimalBody(t *testing.T) {
	data, err := wire.Marshal(map[string]any{"schedule": map[string]any{"type": "notCurrentlyTaken"}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := codec.Unmarshal(testutil.SeqID(1), data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Name != "" || got.Strength != "" || len(got.Times) != 0 {
		t.Errorf("Unmarshal() = %+v, want empty attributes", got)
	}
	if _, ok := got.Schedule.(rx.NotCurrentlyTaken); !ok {
		t.Errorf("Schedule = %T, want NotCurrentlyTaken", got.Schedule)
	}
}

func TestUnmarshal_CorruptData(t *testing.T) {
	for _, data := range [][]byte{nil, {0xc1}, []byte("not msgpack at all")} {
		if _, err := codec.Unmarshal(testutil.SeqID(1), data); err == nil {
			t.Errorf("Unmarshal(%q) expected error", data)
		}
	}
}
