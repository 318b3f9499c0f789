package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

//go:embed migrations
var migrationsFS embed.FS

// migrateUp applies pending migrations for the configured dialect.
//
// The Postgres migrate driver pins a connection and closes the pool on
// Close, so it gets a private pool. SQLite reuses db because an in-memory
// database exists only on its single connection.
func migrateUp(db *sql.DB, cfg store.StoreConfig) error {
	var (
		drv     database.Driver
		dir     string
		dialect string
		err     error
		private *sql.DB
	)

	if cfg.IsPostgres() {
		private, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return fmt.Errorf("open migration pool: %w", err)
		}
		drv, err = migratepgx.WithInstance(private, &migratepgx.Config{})
		dir, dialect = "migrations/postgres", "pgx5"
	} else {
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
		dir, dialect = "migrations/sqlite", "sqlite"
	}
	if err != nil {
		if private != nil {
			private.Close()
		}
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, drv)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	if private != nil {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Debug("schema migrated", "dialect", dialect, "version", version, "dirty", dirty)
	return nil
}
