// Package migrate applies the schema migrations under db/migrations.
package migrate

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunDBMigration brings the given database up to the latest schema version.
// A database that is already current is not an error.
func RunDBMigration(client *sql.DB) error {
	m, err := newMigrateInstance(client, "./db/migrations")
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func newMigrateInstance(client *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := pgdriver.WithInstance(client, &pgdriver.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
}
