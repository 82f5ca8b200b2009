package rx

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Medication is a medication record. Identity is ID alone: two values with the
// same ID are the same medication regardless of their attributes. A zero ID
// marks a draft that has never been saved.
//
// Values are replaced wholesale on edit; the repository never mutates one in place.
type Medication struct {
	ID       uuid.UUID
	Name     string // empty means unset
	Strength string // empty means unset
	Schedule Schedule
	Times    []TimeOfDay

	// Persisted is true once a file has been written for ID.
	Persisted bool
}

// NewMedication returns an unsaved draft.
func NewMedication(name, strength string, schedule Schedule, times []TimeOfDay) Medication {
	return Medication{
		Name:     name,
		Strength: strength,
		Schedule: schedule,
		Times:    slices.Clone(times),
	}
}

// HasID reports whether an identity has been assigned.
func (m Medication) HasID() bool {
	return m.ID != uuid.Nil
}

// SameAs reports whether m and other are the same medication (identity equality).
func (m Medication) SameAs(other Medication) bool {
	return m.ID == other.ID
}

// Equivalent reports whether m and other carry the same attributes, ignoring
// identity and the persisted flag.
func (m Medication) Equivalent(other Medication) bool {
	if m.Name != other.Name || m.Strength != other.Strength {
		return false
	}
	if !slices.Equal(m.Times, other.Times) {
		return false
	}
	if m.Schedule == nil || other.Schedule == nil {
		return m.Schedule == nil && other.Schedule == nil
	}
	return EqualSchedules(m.Schedule, other.Schedule)
}

// WithAttributes returns a copy of m that keeps its identity and persisted flag
// but takes every attribute from edit.
func (m Medication) WithAttributes(edit Medication) Medication {
	return Medication{
		ID:        m.ID,
		Name:      edit.Name,
		Strength:  edit.Strength,
		Schedule:  edit.Schedule,
		Times:     slices.Clone(edit.Times),
		Persisted: m.Persisted,
	}
}

// DoseTimes returns the dose timestamps for m between from and to. A nil
// schedule is treated as NotCurrentlyTaken.
func (m Medication) DoseTimes(loc *time.Location, from, to time.Time) []time.Time {
	if m.Schedule == nil {
		return nil
	}
	return Dates(loc, m.Schedule, m.Times, from, to)
}

// DisplayName returns Name, or a placeholder when unset.
func (m Medication) DisplayName() string {
	if m.Name == "" {
		return "(unnamed)"
	}
	return m.Name
}
