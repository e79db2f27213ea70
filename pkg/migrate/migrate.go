// Package migrate owns the SQL schema: the goose migrations under migrations/, the
// tooling that creates and validates them, and the runner every binary shares.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
)

// DefaultDir is where cmd/migrate creates and validates migration files.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dialect maps the configured database driver onto a goose dialect. Migrations are
// written in the SQL subset both Postgres and SQLite accept.
func Dialect(cfg config.DBConfig) goose.Dialect {
	if cfg.IsSQLite() {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Migrator applies the migrations found in one filesystem to one database.
type Migrator struct {
	provider *goose.Provider
}

func NewMigrator(db *sql.DB, dialect goose.Dialect, migrations fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if migrations == nil {
		return nil, errors.New("migrations filesystem is required")
	}
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("goose down: %w", err)
	}
	return result, nil
}

// Redo rolls back the latest migration and applies it again.
func (m *Migrator) Redo(ctx context.Context) ([]*goose.MigrationResult, error) {
	down, err := m.Down(ctx)
	if err != nil {
		return nil, err
	}
	up, err := m.provider.UpByOne(ctx)
	if err != nil {
		return []*goose.MigrationResult{down, up}, fmt.Errorf("goose redo: %w", err)
	}
	return []*goose.MigrationResult{down, up}, nil
}

func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

// Version is the latest applied migration, 0 on an empty database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// MigrateTo moves the schema up or down until target is the latest applied version.
// target is a migration timestamp (YYYYMMDDHHMMSS).
func (m *Migrator) MigrateTo(ctx context.Context, target string) ([]*goose.MigrationResult, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	current, err := m.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err := m.provider.UpTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return results, nil
	default:
		results, err := m.provider.DownTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return results, nil
	}
}
