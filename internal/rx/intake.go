package rx

import (
	"time"

	"github.com/google/uuid"
)

// DoseRecord is one logged intake of a medication.
type DoseRecord struct {
	ID           uuid.UUID
	MedicationID uuid.UUID
	ScheduledAt  time.Time
	TakenAt      time.Time
}

// IntakeLog stores taken doses. Records outlive the medication they reference.
type IntakeLog interface {
	// RecordDose stores a record.
	RecordDose(record *DoseRecord) error

	// FindDosesForMedication returns records for a medication, newest first.
	// limit <= 0 means no limit.
	FindDosesForMedication(medicationID uuid.UUID, limit int) ([]*DoseRecord, error)

	// FindDosesBetween returns records whose scheduled time lies in [from, to], oldest first.
	FindDosesBetween(from, to time.Time) ([]*DoseRecord, error)

	// Close closes the underlying store.
	Close() error
}
