// Package store keeps the append-only evaluation history
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// ErrNotFound is returned when a domain has no evaluation yet
var ErrNotFound = errors.New("not found")

//go:embed migrations
var migrations embed.FS

// Store persists evaluations. Evaluations are never modified; only
// retention removes them.
type Store interface {
	Create(ctx context.Context, ev *consent.Evaluation) error
	// Latest returns the newest evaluation of domain or ErrNotFound
	Latest(ctx context.Context, domain string) (*consent.Evaluation, error)
	// History returns up to limit evaluations of domain, newest first
	History(ctx context.Context, domain string, limit int) ([]consent.Evaluation, error)
	// Prune deletes evaluations scanned before cutoff and reports how many
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open builds the store selected by driver. dsn is a file path for sqlite
// and a connection URL for postgres.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// migrate applies the embedded migrations of one dialect
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
