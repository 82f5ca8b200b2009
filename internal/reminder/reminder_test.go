package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"medrx/internal/reminder"
	"medrx/internal/repository"
	"medrx/internal/rx"
	"medrx/internal/testutil"
)

type stubSource struct {
	doses []rx.Dose
	err   error
	calls [][2]time.Time
}

func (s *stubSource) UpcomingDoses(_ context.Context, from, to time.Time) ([]rx.Dose, error) {
	s.calls = append(s.calls, [2]time.Time{from, to})
	if s.err != nil {
		return nil, s.err
	}
	return s.doses, nil
}

type collector struct {
	got []rx.Dose
}

func (c *collector) Remind(_ context.Context, d rx.Dose) error {
	c.got = append(c.got, d)
	return nil
}

func dose(name string, at time.Time, taken bool) rx.Dose {
	return rx.Dose{Medication: rx.Medication{Name: name}, At: at, Taken: taken}
}

func TestReminder_Check(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	start := clock.Now()
	source := &stubSource{doses: []rx.Dose{
		dose("before", start.Add(-time.Minute), false),
		dose("at start", start, false),
		dose("due", start.Add(10*time.Minute), false),
		dose("taken", start.Add(20*time.Minute), true),
		dose("at end", start.Add(time.Hour), false),
		dose("later", start.Add(time.Hour+time.Minute), false),
	}}
	notes := &collector{}
	r := reminder.New(source, notes, clock, rx.NewNopLogger(), time.UTC)

	t.Run("nothing elapsed", func(t *testing.T) {
		n, err := r.Check(ctx)
		if err != nil || n != 0 {
			t.Errorf("Check() = %d, %v; want 0, nil", n, err)
		}
		if len(source.calls) != 0 {
			t.Errorf("source called %d times, want 0", len(source.calls))
		}
	})

	t.Run("window since start", func(t *testing.T) {
		clock.Advance(time.Hour)

		n, err := r.Check(ctx)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if n != 2 {
			t.Errorf("Check() = %d, want 2", n)
		}
		if len(notes.got) != 2 || notes.got[0].Medication.Name != "due" || notes.got[1].Medication.Name != "at end" {
			t.Errorf("reminded %+v, want due and at end", notes.got)
		}
		if call := source.calls[0]; !call[0].Equal(start) || !call[1].Equal(start.Add(time.Hour)) {
			t.Errorf("source asked for %v..%v", call[0], call[1])
		}
	})

	t.Run("next window excludes reminded doses", func(t *testing.T) {
		notes.got = nil
		clock.Advance(5 * time.Minute)

		n, err := r.Check(ctx)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if n != 1 || notes.got[0].Medication.Name != "later" {
			t.Errorf("reminded %+v, want only later", notes.got)
		}
	})
}

func TestReminder_CheckSourceErrorKeepsWindow(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	start := clock.Now()
	source := &stubSource{
		doses: []rx.Dose{dose("due", start.Add(time.Minute), false)},
		err:   errors.New("disk gone"),
	}
	notes := &collector{}
	r := reminder.New(source, notes, clock, rx.NewNopLogger(), time.UTC)

	clock.Advance(2 * time.Minute)
	if _, err := r.Check(ctx); err == nil {
		t.Fatal("Check() expected error")
	}

	source.err = nil
	clock.Advance(2 * time.Minute)
	n, err := r.Check(ctx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Check() = %d, want the missed dose delivered", n)
	}
	if from := source.calls[1][0]; !from.Equal(start) {
		t.Errorf("retry window starts at %v, want %v", from, start)
	}
}

func TestReminder_CheckNotifierFailure(t *testing.T) {
	clock := testutil.FixedClock()
	start := clock.Now()
	source := &stubSource{doses: []rx.Dose{
		dose("first", start.Add(time.Minute), false),
		dose("second", start.Add(2*time.Minute), false),
	}}
	var delivered []string
	notifier := reminder.NotifierFunc(func(_ context.Context, d rx.Dose) error {
		if d.Medication.Name == "first" {
			return errors.New("unreachable")
		}
		delivered = append(delivered, d.Medication.Name)
		return nil
	})
	r := reminder.New(source, notifier, clock, rx.NewNopLogger(), time.UTC)

	clock.Advance(time.Hour)
	n, err := r.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if n != 1 || len(delivered) != 1 || delivered[0] != "second" {
		t.Errorf("Check() = %d, delivered %v; want only second", n, delivered)
	}
}

func TestReminder_WithService(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewStubClock(time.Date(2015, 1, 1, 7, 30, 0, 0, time.UTC))
	svc := rx.NewService(repository.NewMemoryRepository(testutil.NewStubIDGenerator()), testutil.NewTestDatabase(t),
		rx.NewNopLogger(), clock, testutil.NewStubIDGenerator(), time.UTC)

	aspirin, err := svc.AddMedication(ctx, testutil.Aspirin(t))
	if err != nil {
		t.Fatalf("AddMedication() error = %v", err)
	}

	notes := &collector{}
	r := reminder.New(svc, notes, clock, rx.NewNopLogger(), time.UTC)

	clock.Advance(time.Hour)
	if n, err := r.Check(ctx); err != nil || n != 1 {
		t.Fatalf("Check() = %d, %v; want the 08:00 dose", n, err)
	}
	if want := time.Date(2015, 1, 1, 8, 0, 0, 0, time.UTC); !notes.got[0].At.Equal(want) {
		t.Errorf("reminded dose at %v, want %v", notes.got[0].At, want)
	}

	if _, err := svc.RecordDose(ctx, aspirin.ID, time.Date(2015, 1, 1, 20, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("RecordDose() error = %v", err)
	}
	clock.Advance(13 * time.Hour)
	if n, err := r.Check(ctx); err != nil || n != 0 {
		t.Errorf("Check() = %d, %v; want the taken 20:00 dose skipped", n, err)
	}
}

func TestReminder_Start(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		r := reminder.New(&stubSource{}, &collector{}, testutil.FixedClock(), rx.NewNopLogger(), time.UTC)
		if err := r.Start("every tuesday"); err == nil {
			t.Error("Start() expected error")
		}
	})

	t.Run("runs checks until stopped", func(t *testing.T) {
		clock := testutil.FixedClock()
		start := clock.Now()
		source := &stubSource{doses: []rx.Dose{dose("due", start.Add(time.Minute), false)}}
		reminded := make(chan rx.Dose, 1)
		notifier := reminder.NotifierFunc(func(_ context.Context, d rx.Dose) error {
			reminded <- d
			return nil
		})
		r := reminder.New(source, notifier, clock, rx.NewNopLogger(), time.UTC)
		clock.Advance(time.Hour)

		if err := r.Start("@every 1s"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer r.Stop()

		if got := testutil.WaitFor(t, reminded); got.Medication.Name != "due" {
			t.Errorf("reminded %+v, want due", got)
		}
	})
}
