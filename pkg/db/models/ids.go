package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller did not pick one. Ids are
// generated in Go so the same insert works on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// nonNilTags keeps JSON tag columns from serializing as null.
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
