package rx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dose is one scheduled intake of a medication.
type Dose struct {
	Medication Medication
	At         time.Time
	Taken      bool
}

// Service is the orchestration layer that coordinates the repository, the
// intake log and the date generator for the CLI.
type Service struct {
	repo   Repository
	intake IntakeLog
	logger Logger
	clock  Clock
	idgen  IDGenerator
	loc    *time.Location
}

// NewService creates a Service. loc is the calendar time zone doses are computed in.
func NewService(repo Repository, intake IntakeLog, logger Logger, clock Clock, idgen IDGenerator, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:   repo,
		intake: intake,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		loc:    loc,
	}
}

// Location returns the service's calendar time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// AddMedication saves a new medication and returns it with its identity.
func (s *Service) AddMedication(ctx context.Context, draft Medication) (Medication, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return Medication{}, errors.New("medication name is required")
	}
	if draft.HasID() {
		return Medication{}, fmt.Errorf("medication %s already exists", draft.ID)
	}
	if draft.Schedule == nil {
		draft.Schedule = Daily{}
	}

	saved, err := s.repo.Save(ctx, draft)
	if err != nil {
		return Medication{}, err
	}
	s.logger.Info("medication added", "id", saved.ID.String(), "name", saved.Name)
	return saved, nil
}

// UpdateMedication replaces every attribute of the medication with the given
// identity by those of edit. The identity is kept.
func (s *Service) UpdateMedication(ctx context.Context, id uuid.UUID, edit Medication) (Medication, error) {
	if strings.TrimSpace(edit.Name) == "" {
		return Medication{}, errors.New("medication name is required")
	}
	current, err := s.FindMedication(ctx, id)
	if err != nil {
		return Medication{}, err
	}

	saved, err := s.repo.Save(ctx, current.WithAttributes(edit))
	if err != nil {
		return Medication{}, err
	}
	s.logger.Info("medication updated", "id", saved.ID.String(), "name", saved.Name)
	return saved, nil
}

// RemoveMedication deletes a medication. Its dose history is kept.
func (s *Service) RemoveMedication(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing medication %s: %w", id, err)
	}
	s.logger.Info("medication removed", "id", id.String())
	return nil
}

// ListMedications returns all medications ordered by name.
func (s *Service) ListMedications(ctx context.Context) ([]Medication, error) {
	meds, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading medications: %w", err)
	}
	slices.SortStableFunc(meds, func(a, b Medication) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return meds, nil
}

// FindMedication returns the medication with the given identity.
func (s *Service) FindMedication(ctx context.Context, id uuid.UUID) (Medication, error) {
	meds, err := s.repo.Load(ctx)
	if err != nil {
		return Medication{}, fmt.Errorf("loading medications: %w", err)
	}
	for _, m := range meds {
		if m.ID == id {
			return m, nil
		}
	}
	return Medication{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ResolveMedication finds a medication by full identity, unique identity
// prefix, or case-insensitive name.
func (s *Service) ResolveMedication(ctx context.Context, ref string) (Medication, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Medication{}, errors.New("medication reference is empty")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.FindMedication(ctx, id)
	}

	meds, err := s.repo.Load(ctx)
	if err != nil {
		return Medication{}, fmt.Errorf("loading medications: %w", err)
	}

	var matches []Medication
	for _, m := range meds {
		if strings.EqualFold(m.Name, ref) || strings.HasPrefix(m.ID.String(), strings.ToLower(ref)) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return Medication{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return Medication{}, fmt.Errorf("%q matches %d medications", ref, len(matches))
	}
}

// UpcomingDoses returns every dose due between from and to across all
// medications, sorted by time. Doses already logged are marked Taken.
func (s *Service) UpcomingDoses(ctx context.Context, from, to time.Time) ([]Dose, error) {
	meds, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading medications: %w", err)
	}

	taken := make(map[doseKey]bool)
	if s.intake != nil {
		records, err := s.intake.FindDosesBetween(startOfDay(from, s.loc), endOfDay(to, s.loc))
		if err != nil {
			return nil, fmt.Errorf("reading intake log: %w", err)
		}
		for _, r := range records {
			taken[doseKey{r.MedicationID, r.ScheduledAt.Unix()}] = true
		}
	}

	var doses []Dose
	for _, m := range meds {
		for _, at := range m.DoseTimes(s.loc, from, to) {
			doses = append(doses, Dose{
				Medication: m,
				At:         at,
				Taken:      taken[doseKey{m.ID, at.Unix()}],
			})
		}
	}
	slices.SortStableFunc(doses, func(a, b Dose) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return strings.Compare(a.Medication.Name, b.Medication.Name)
	})
	return doses, nil
}

type doseKey struct {
	id uuid.UUID
	at int64
}

// RecordDose logs that the dose of the given medication scheduled at
// scheduledAt was taken now.
func (s *Service) RecordDose(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*DoseRecord, error) {
	if s.intake == nil {
		return nil, errors.New("no intake log configured")
	}
	m, err := s.FindMedication(ctx, id)
	if err != nil {
		return nil, err
	}

	record := &DoseRecord{
		ID:           s.idgen.New(),
		MedicationID: m.ID,
		ScheduledAt:  scheduledAt,
		TakenAt:      s.clock.Now(),
	}
	if err := s.intake.RecordDose(record); err != nil {
		return nil, fmt.Errorf("recording dose of %s: %w", m.DisplayName(), err)
	}
	s.logger.Info("dose recorded", "id", m.ID.String(), "scheduled_at", scheduledAt.Format(time.RFC3339))
	return record, nil
}

// DueWindow is how far ahead of its scheduled time a dose counts as due.
const DueWindow = time.Hour

// DueDose returns the earliest untaken dose of the medication scheduled
// today up to DueWindow from now.
func (s *Service) DueDose(ctx context.Context, id uuid.UUID) (Dose, error) {
	now := s.clock.Now().In(s.loc)
	doses, err := s.UpcomingDoses(ctx, now, now)
	if err != nil {
		return Dose{}, err
	}
	limit := now.Add(DueWindow)
	for _, d := range doses {
		if d.Medication.ID == id && !d.Taken && !d.At.After(limit) {
			return d, nil
		}
	}
	return Dose{}, fmt.Errorf("no dose of %s is due", id)
}

// DoseHistory returns the logged doses of a medication, newest first.
func (s *Service) DoseHistory(_ context.Context, id uuid.UUID, limit int) ([]*DoseRecord, error) {
	if s.intake == nil {
		return nil, errors.New("no intake log configured")
	}
	records, err := s.intake.FindDosesForMedication(id, limit)
	if err != nil {
		return nil, fmt.Errorf("reading intake log: %w", err)
	}
	return records, nil
}

// Watch subscribes to the repository's continuous feed.
func (s *Service) Watch(ctx context.Context) (*Subscription, error) {
	return s.repo.Subscribe(ctx)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return nextDay(startOfDay(t, loc)).Add(-time.Nanosecond)
}
