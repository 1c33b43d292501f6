package migrate_test

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crm-backend/pkg/migrate"
)

func TestPostgresMigrationsCarryRelationshipIndexes(t *testing.T) {
	fsys, _, err := migrate.Migrations("postgres")
	require.NoError(t, err)

	var content strings.Builder
	require.NoError(t, fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, readErr := fs.ReadFile(fsys, path)
		if readErr != nil {
			return readErr
		}
		content.Write(data)
		return nil
	}))

	checks := []string{
		"CREATE TABLE IF NOT EXISTS contacts",
		"CREATE TABLE IF NOT EXISTS areas_of_activity",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_areas_of_activity_primary ON areas_of_activity (contact_id) WHERE is_primary",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_synergies_active_triple ON synergies (contact_id, company_id, deal_id) WHERE status <> 'archived'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_contact_emails_primary",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"DROP TABLE IF EXISTS synergies",
	}
	for _, sub := range checks {
		require.Contains(t, content.String(), sub)
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations/postgres"))
	require.NoError(t, migrate.ValidateDir("migrations/sqlite"))
}

func TestSQLiteMigrationsApply(t *testing.T) {
	client := dbtest.Open(t)

	var tables []string
	require.NoError(t, client.Raw(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name").Scan(&tables).Error)
	for _, table := range []string{"areas_of_activity", "companies", "contacts", "deals", "outbox_events", "synergies"} {
		require.Contains(t, tables, table)
	}
}

func TestUnknownDriver(t *testing.T) {
	_, _, err := migrate.Migrations("mysql")
	require.Error(t, err)
}
