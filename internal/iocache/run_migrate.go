package iocache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// runMigrationsTable tracks the applied run store migrations.
const runMigrationsTable = "clustervis_schema_migrations"

// MigrationResult describes the outcome of MigrateRuns.
type MigrationResult struct {
	From    uint
	To      uint
	Changed bool
}

// String returns a human readable summary.
func (r MigrationResult) String() string {
	if !r.Changed {
		return fmt.Sprintf("No migration needed. Database is already at version %d", r.To)
	}
	return fmt.Sprintf("Successfully migrated from version %d to version %d", r.From, r.To)
}

// MigrateRuns runs database migrations for the run store.
// - If targetVersion < 0, it migrates to the latest version.
// - If targetVersion == 0, it rolls back all migrations (to initial state).
// - If targetVersion > 0, it migrates to the specified version.
func MigrateRuns(backend schema.DatabaseBackend, connStr string, targetVersion int) (MigrationResult, error) {
	if backend == schema.NoneBackend {
		return MigrationResult{}, fmt.Errorf("migrations are not supported for NoneBackend")
	}
	db, err := openDB(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return MigrationResult{}, err
	}
	defer func() { _ = db.Close() }()

	m, release, err := newMigrator(context.Background(), db, backend)
	if err != nil {
		return MigrationResult{}, err
	}
	defer func() { _ = release() }()

	return migrateTo(m, targetVersion)
}

// ensureRunSchema brings the run tables of an open database up to date.
func ensureRunSchema(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend) error {
	m, release, err := newMigrator(ctx, db, backend)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	_, err = migrateTo(m, -1)
	return err
}

// newMigrator wraps db in a migrate instance. The returned release func
// frees what the migrator holds without closing db.
func newMigrator(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend) (*migrate.Migrate, func() error, error) {
	var driver database.Driver
	var err error
	var dialect string
	release := func() error { return nil }

	switch backend {
	case schema.SQLiteBackend:
		// The SQLite driver shares db directly; closing it would close db.
		dialect = "sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: runMigrationsTable})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite migrate driver: %w", err)
		}

	case schema.MySQLBackend:
		dialect = "mysql"
		conn, cerr := db.Conn(ctx)
		if cerr != nil {
			return nil, nil, fmt.Errorf("failed to acquire MySQL connection: %w", cerr)
		}
		driver, err = mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: runMigrationsTable})
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to create MySQL migrate driver: %w", err)
		}

	case schema.PostgreSQLBackend:
		dialect = "postgres"
		conn, cerr := db.Conn(ctx)
		if cerr != nil {
			return nil, nil, fmt.Errorf("failed to acquire PostgreSQL connection: %w", cerr)
		}
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: runMigrationsTable})
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to create PostgreSQL migrate driver: %w", err)
		}

	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	migrationFS, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "clustervis", driver)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if backend != schema.SQLiteBackend {
		release = func() error {
			srcErr, dbErr := m.Close()
			return errors.Join(srcErr, dbErr)
		}
	}
	return m, release, nil
}

// migrateTo moves m to targetVersion, following the MigrateRuns conventions.
func migrateTo(m *migrate.Migrate, targetVersion int) (MigrationResult, error) {
	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return MigrationResult{}, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", currentVersion)
	}

	result := MigrationResult{From: currentVersion}
	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return result, fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	newVersion, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to get migrated version: %w", verr)
	}
	result.To = newVersion
	result.Changed = result.From != result.To
	return result, nil
}
