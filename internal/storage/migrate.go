package storage

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "fintrack/internal/log"
)

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// openSchema returns a migrator for the ledger schema of the SQLite file at
// dbPath. The migrator owns its connection; callers must Close it.
func openSchema(dbPath string) (*migrate.Migrate, error) {
	src, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load ledger migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger schema %s: %w", dbPath, err)
	}
	return m, nil
}

// RunMigrations applies pending ledger migrations to the database at dbPath.
// An up-to-date schema is not an error.
func RunMigrations(dbPath string) error {
	m, err := openSchema(dbPath)
	if err != nil {
		return err
	}
	defer m.Close()

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read ledger schema version: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate ledger schema: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read ledger schema version: %w", err)
	}
	slog.Info("Ledger schema migrated",
		applog.FieldComponent, applog.ComponentStorage,
		"from", from,
		"to", to)
	return nil
}

// SchemaVersion reports the applied ledger migration and whether a failed
// migration left it dirty. An unmigrated database reports version 0.
func SchemaVersion(dbPath string) (version uint, dirty bool, err error) {
	m, err := openSchema(dbPath)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
