package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location of the Postgres migrations, used by the
// create and validate commands.
const DefaultDir = "pkg/migrate/migrations/postgres"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// Migrations returns the embedded migration set for the given database driver
// ("postgres" or "sqlite").
func Migrations(driver string) (fs.FS, goose.Dialect, error) {
	switch driver {
	case "postgres", "":
		sub, err := fs.Sub(embedded, "migrations/postgres")
		return sub, goose.DialectPostgres, err
	case "sqlite", "sqlite3":
		sub, err := fs.Sub(embedded, "migrations/sqlite")
		return sub, goose.DialectSQLite3, err
	default:
		return nil, "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

// Up applies every pending embedded migration for the driver.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func newProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, dialect, err := Migrations(driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run executes a standard goose command against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, driver string, command string) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		_, err = provider.Up(ctx)
	case "down":
		_, err = provider.Down(ctx)
	case "status":
		var statuses []*goose.MigrationStatus
		statuses, err = provider.Status(ctx)
		for _, st := range statuses {
			fmt.Printf("%-16d %-8s %s\n", st.Source.Version, st.State, st.Source.Path)
		}
	default:
		return fmt.Errorf("unknown goose command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if _, err := provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
