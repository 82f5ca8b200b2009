package testutil

import (
	"testing"

	"medrx/internal/database"
	"medrx/internal/rx"
)

// NewTestDatabase creates a new in-memory intake log with the schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) rx.IntakeLog {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
