// Package migrations holds the embedded schema of the history database.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// MigrateUp applies every pending migration. An up-to-date schema is not
// an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db, which the caller owns

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Status reports the schema version of db, whether a previous migration
// left it dirty, and the latest version embedded in the binary.
func Status(db *sql.DB) (current uint, latest uint, dirty bool, err error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	current, dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, 0, false, fmt.Errorf("failed to get database version: %w", err)
	}

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()

	latest, err = latestVersion(src)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return current, latest, dirty, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, err
	}
	return m, nil
}

func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			// io/fs reports the end of the list as an error
			return v, nil
		}
		v = next
	}
}
