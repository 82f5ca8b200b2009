package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"medrx/internal/database/migrations"
	"medrx/internal/rx"
)

// SQLiteDatabase implements rx.IntakeLog on SQLite. Timestamps are stored as
// Unix seconds and read back in UTC.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ rx.IntakeLog = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: gets its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the database location, or "" for a wrapped connection.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

func (s *SQLiteDatabase) RecordDose(record *rx.DoseRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO doses (id, medication_id, scheduled_at, taken_at) VALUES (?, ?, ?, ?)`,
		record.ID.String(), record.MedicationID.String(), record.ScheduledAt.Unix(), record.TakenAt.Unix(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s at %s", rx.ErrDoseRecorded, record.MedicationID, record.ScheduledAt.Format(time.RFC3339))
		}
		return fmt.Errorf("inserting dose: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindDosesForMedication(medicationID uuid.UUID, limit int) ([]*rx.DoseRecord, error) {
	query := `SELECT id, medication_id, scheduled_at, taken_at FROM doses
		WHERE medication_id = ? ORDER BY scheduled_at DESC, taken_at DESC`
	args := []any{medicationID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying doses for %s: %w", medicationID, err)
	}
	return scanDoses(rows)
}

func (s *SQLiteDatabase) FindDosesBetween(from, to time.Time) ([]*rx.DoseRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, medication_id, scheduled_at, taken_at FROM doses
		WHERE scheduled_at BETWEEN ? AND ? ORDER BY scheduled_at ASC, medication_id ASC`,
		from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying doses between %s and %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return scanDoses(rows)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

func scanDoses(rows *sql.Rows) ([]*rx.DoseRecord, error) {
	defer rows.Close()

	var records []*rx.DoseRecord
	for rows.Next() {
		var (
			id, medID           string
			scheduled, takenAt int64
		)
		if err := rows.Scan(&id, &medID, &scheduled, &takenAt); err != nil {
			return nil, fmt.Errorf("scanning dose: %w", err)
		}
		record := &rx.DoseRecord{
			ScheduledAt: time.Unix(scheduled, 0).UTC(),
			TakenAt:     time.Unix(takenAt, 0).UTC(),
		}
		var err error
		if record.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("dose %q has invalid id: %w", id, err)
		}
		if record.MedicationID, err = uuid.Parse(medID); err != nil {
			return nil, fmt.Errorf("dose %q has invalid medication id: %w", id, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating doses: %w", err)
	}
	return records, nil
}
