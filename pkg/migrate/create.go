package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes an empty goose migration into dir:
//
//	<dir>/<YYYYMMDDHHMMSS>_<name>.sql
//
// The version is the current UTC second, pushed past the newest version in
// dir so a file created right after another still sorts last.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	latest, err := latestVersion(dir, safe)
	if err != nil {
		return "", err
	}
	at := now.UTC().Truncate(time.Second)
	if !latest.IsZero() && !at.After(latest) {
		at = latest.Add(time.Second)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.Format(versionLayout), safe))
	template := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %s
-- +goose StatementEnd
`, safe, safe)

	if err := os.WriteFile(fullpath, []byte(template), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// latestVersion returns the newest version in dir and fails when a migration
// with the same name already exists, since ValidateDir would reject it.
func latestVersion(dir, name string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var latest time.Time
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		if m[2] == name {
			return time.Time{}, fmt.Errorf("migration already exists: %s", filepath.Join(dir, e.Name()))
		}
		v, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if v.After(latest) {
			latest = v
		}
	}
	return latest, nil
}
