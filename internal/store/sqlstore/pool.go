// Package sqlstore implements the identity, credential, and interaction-log
// collaborators on top of database/sql. The same queries run against Postgres
// (pgx driver) and SQLite (modernc driver); sqlx rebinds placeholders.
package sqlstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// driverName maps the configured driver to the database/sql driver name.
func driverName(cfg store.StoreConfig) string {
	if cfg.IsPostgres() {
		return "pgx"
	}
	return "sqlite"
}

// OpenDB opens the configured database, applies migrations and returns a
// sqlx handle shared by all stores.
func OpenDB(cfg store.StoreConfig) (*sqlx.DB, error) {
	name := driverName(cfg)
	dsn := cfg.DSN
	if name == "sqlite" {
		if dsn == "" {
			dsn = "agentgate.db"
		}
		if !strings.Contains(dsn, "?") && dsn != ":memory:" {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	switch {
	case name == "pgx":
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
	case strings.Contains(dsn, ":memory:"):
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(4)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}

	if err := migrateUp(db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connected", "driver", name, "dsn_len", len(dsn))
	return sqlx.NewDb(db, name), nil
}

// Stores bundles the collaborators backed by one database.
type Stores struct {
	DB           *sqlx.DB
	Users        *UserStore
	Credentials  *CredentialStore
	Interactions *InteractionStore
}

// New opens the database and builds every store on top of it.
func New(cfg store.StoreConfig) (*Stores, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Stores{
		DB:           db,
		Users:        NewUserStore(db),
		Credentials:  NewCredentialStore(db),
		Interactions: NewInteractionStore(db),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Stores) Close() error {
	return s.DB.Close()
}
