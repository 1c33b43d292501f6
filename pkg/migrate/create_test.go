package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "Add Deal Probability!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20261001120000_add_deal_probability.sql" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationSortsAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "20261001120000_create_tags.sql")
	if err := os.WriteFile(existing, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path, err := createSQLMigration(dir, "index tags", time.Date(2026, 10, 1, 11, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "20261001120001_") {
		t.Fatalf("expected version after the newest one, got %q", filepath.Base(path))
	}
}

func TestCreateSQLMigrationRejectsReusedName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	if _, err := createSQLMigration(dir, "create_tags", now); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := createSQLMigration(dir, "Create Tags", now.Add(time.Hour)); err == nil {
		t.Fatal("expected error for reused migration name")
	}
}

func TestCreateSQLMigrationRequiresInputs(t *testing.T) {
	if _, err := createSQLMigration("", "x", time.Now()); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := createSQLMigration(t.TempDir(), " !! ", time.Now()); err == nil {
		t.Fatal("expected error for name that sanitizes to nothing")
	}
}

func TestValidateSQLRejectsFullUniqueIndexOnHistoryTable(t *testing.T) {
	sql := `-- +goose Up
-- +goose StatementBegin
CREATE UNIQUE INDEX IF NOT EXISTS ux_synergies_triple ON synergies (contact_id, company_id, deal_id);
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
DROP INDEX IF EXISTS ux_synergies_triple;
-- +goose StatementEnd
`
	err := validateSQL("20261001120000_bad.sql", sql)
	if err == nil || !strings.Contains(err.Error(), "must be partial") {
		t.Fatalf("expected partial index error, got %v", err)
	}

	partial := strings.Replace(sql, "deal_id);", "deal_id) WHERE status <> 'archived';", 1)
	if err := validateSQL("20261001120000_ok.sql", partial); err != nil {
		t.Fatalf("partial index should pass: %v", err)
	}

	other := strings.Replace(sql, "ON synergies", "ON companies", 1)
	if err := validateSQL("20261001120000_companies.sql", other); err != nil {
		t.Fatalf("non-history table should pass: %v", err)
	}
}

func TestValidateSQLRejectsUnbalancedStatements(t *testing.T) {
	sql := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := validateSQL("20261001120000_x.sql", sql); err == nil {
		t.Fatal("expected unbalanced statement error")
	}
}
