// Package database opens the Postgres connection and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	// Postgres driver registration.
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var bundledMigrations embed.FS

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// BundledMigrations returns the goose migrations compiled into the binary.
func BundledMigrations() fs.FS {
	sub, err := fs.Sub(bundledMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrator applies goose migrations. Applied versions are tracked in the
// goose_db_version table, so each file runs once per database.
type Migrator struct {
	provider *goose.Provider
	log      *slog.Logger
}

// NewMigrator reads migrations from fsys, or from the bundled set when
// fsys is nil.
func NewMigrator(db *sql.DB, fsys fs.FS, log *slog.Logger) (*Migrator, error) {
	if log == nil {
		log = slog.Default()
	}
	if fsys == nil {
		fsys = BundledMigrations()
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return &Migrator{provider: provider, log: log}, nil
}

// NewDirMigrator reads migrations from a directory on disk.
func NewDirMigrator(db *sql.DB, dir string, log *slog.Logger) (*Migrator, error) {
	return NewMigrator(db, os.DirFS(dir), log)
}

// Versions lists the known migration versions in order.
func (m *Migrator) Versions() []int64 {
	sources := m.provider.ListSources()
	versions := make([]int64, 0, len(sources))
	for _, src := range sources {
		versions = append(versions, src.Version)
	}
	return versions
}

// Up applies every pending migration and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	for _, res := range results {
		m.log.Info("migration applied",
			slog.Int64("version", res.Source.Version),
			slog.String("file", res.Source.Path),
			slog.Duration("took", res.Duration),
		)
	}

	version, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
