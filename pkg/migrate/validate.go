package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

	// uniqueIndexRe captures the table and the rest of a CREATE UNIQUE INDEX
	// statement up to its terminating semicolon.
	uniqueIndexRe = regexp.MustCompile(`(?is)CREATE\s+UNIQUE\s+INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?(\w+)\s+ON\s+(\w+)([^;]*);`)
	whereRe       = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// historyTables keep archived or demoted rows next to live ones, so a unique
// index on them has to be partial or it would reject the history.
var historyTables = map[string]bool{
	"synergies":         true,
	"areas_of_activity": true,
	"contact_emails":    true,
	"contact_phones":    true,
}

// ValidateDir checks migration filenames, goose headers and statement
// blocks, and that unique indexes on history tables carry a WHERE clause.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	names := map[string]string{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		file := e.Name()
		if !strings.HasSuffix(file, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(file)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", file)
		}

		version, name := m[1], m[2]
		if prev, ok := versions[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, file)
		}
		versions[version] = file
		if prev, ok := names[name]; ok {
			return fmt.Errorf("duplicate migration name %q in %q and %q", name, prev, file)
		}
		names[name] = file

		full := filepath.Join(dir, file)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		if err := validateSQL(file, string(b)); err != nil {
			return err
		}
	}

	return nil
}

func validateSQL(file, txt string) error {
	if !strings.Contains(txt, "-- +goose Up") {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", file)
	}
	if !strings.Contains(txt, "-- +goose Down") {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", file)
	}
	begins := strings.Count(txt, "-- +goose StatementBegin")
	ends := strings.Count(txt, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("migration %q has %d StatementBegin and %d StatementEnd", file, begins, ends)
	}
	for _, m := range uniqueIndexRe.FindAllStringSubmatch(txt, -1) {
		index, table, rest := m[1], strings.ToLower(m[2]), m[3]
		if historyTables[table] && !whereRe.MatchString(rest) {
			return fmt.Errorf("migration %q: unique index %s on %s must be partial", file, index, table)
		}
	}
	return nil
}
