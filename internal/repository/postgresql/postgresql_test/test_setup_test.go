package postgresql_test

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-tracker/internal/repository/postgresql"
)

// ErrNoTestDatabase is returned when TEST_DATABASE_URL is unset.
var ErrNoTestDatabase = errors.New("TEST_DATABASE_URL is not set")

// TestDatabaseSetup holds a migrated connection to the test database
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema
func NewTestDatabase(ctx context.Context) (*TestDatabaseSetup, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return nil, ErrNoTestDatabase
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	if err := postgresql.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &TestDatabaseSetup{DB: db}, nil
}

// TruncateAllTables removes every row written by a test
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tables := []string{
		"attendance_idle_periods",
		"attendance_breaks",
		"attendance_records",
		"attendance_settings",
	}

	for _, table := range tables {
		if _, err := t.DB.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
