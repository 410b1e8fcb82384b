package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/taskflow/apiserver/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// NewMigrator wraps an open handle with the embedded migrations for driver.
func NewMigrator(db *sql.DB, driver string) (*migrate.Migrate, error) {
	var (
		instance database.Driver
		err      error
	)
	switch driver {
	case config.DriverPostgres, "":
		driver = config.DriverPostgres
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case config.DriverSQLite:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s migration driver: %w", driver, err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return migrator, nil
}

// MigrateUp applies every pending up migration on a dedicated connection
// pool that is closed afterwards.
func MigrateUp(ctx context.Context, cfg config.DatabaseConfig) error {
	return withMigrator(ctx, cfg, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the given number of migrations; steps <= 0 rolls
// back everything.
func MigrateDown(ctx context.Context, cfg config.DatabaseConfig, steps int) error {
	return withMigrator(ctx, cfg, func(m *migrate.Migrate) error {
		var err error
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return nil
	})
}

func withMigrator(ctx context.Context, cfg config.DatabaseConfig, fn func(*migrate.Migrate) error) error {
	conn, err := Open(ctx, cfg)
	if err != nil {
		return err
	}

	migrator, err := NewMigrator(conn, cfg.Driver)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		// Closing the migrator also closes conn.
		_, _ = migrator.Close()
	}()

	return fn(migrator)
}
