package storage

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options selects the database backing the catalog store.
type Options struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// DSN is the connection string. For sqlite it may be ":memory:"; when
	// empty, a file inside DataDir is used.
	DSN     string
	DataDir string
}

// Store is the catalog's relational store.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database and runs pending migrations.
// Pass DSN ":memory:" with the sqlite driver for an in-memory database (used by tests).
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = opts.DSN
		if dsn == "" {
			if opts.DataDir == "" {
				return nil, fmt.Errorf("sqlite needs a dsn or a data directory")
			}
			if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
			dsn = filepath.Join(opts.DataDir, "catalog.db")
		}
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres needs a dsn")
		}
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if driver == DriverSQLite {
		// Limit to single connection to avoid "database is locked" errors
		// and to keep ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)

		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
		if dsn != ":memory:" {
			if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, fmt.Errorf("setting journal mode: %w", err)
			}
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which database driver the store runs on.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate applies the embedded migrations for the store's dialect that
// haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	dir := "migrations/" + s.driver
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.Get(&exists, s.db.Rebind("SELECT COUNT(*) FROM schema_version WHERE version = ?"), version); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec(tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	var versions []int
	if err := s.db.Select(&versions, "SELECT version FROM schema_version ORDER BY version ASC"); err != nil {
		return nil, err
	}
	return versions, nil
}
