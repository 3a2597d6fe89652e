package audit

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Migrate applies all pending schema migrations in migrations/postgres
// against dsn, following the same golang-migrate + lib/pq pattern as the
// teacher's cmd/migrate/main.go.
func Migrate(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("audit: opening database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit: creating postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://pkg/audit/migrations/postgres", "postgres", driver)
	if err != nil {
		return fmt.Errorf("audit: creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: running migrations: %w", err)
	}
	return nil
}
