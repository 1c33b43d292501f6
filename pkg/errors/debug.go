package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// invariants names the CRM rule each unique index or check enforces, so a
// constraint failure in the logs reads as the rule it broke.
var invariants = map[string]string{
	"ux_areas_of_activity_primary":  "one_primary_activity_per_contact",
	"ux_synergies_active_triple":    "one_live_synergy_per_triple",
	"ux_contact_emails_primary":     "one_primary_email_per_contact",
	"chk_areas_of_activity_company": "activity_names_a_company",
}

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	SQLiteCode string `json:"sqlite_code,omitempty"`

	Invariant string `json:"invariant,omitempty"`
}

// Dump flattens an error chain for logging. It surfaces Postgres diagnostics
// from pgx or lib/pq, the extended code from SQLite, and the CRM invariant
// behind a known constraint.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		d.Invariant = invariants[d.PGConstraint]
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
		d.Invariant = invariants[d.PGConstraint]
		return d
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		d.SQLiteCode = liteErr.ExtendedCode.Error()
		d.Invariant = invariantFromMessage(liteErr.Error())
	}

	return d
}

// invariantFromMessage matches SQLite's constraint text, which names the
// check but only the columns of a unique index.
func invariantFromMessage(msg string) string {
	switch {
	case strings.Contains(msg, "areas_of_activity.contact_id") && strings.Contains(msg, "UNIQUE"):
		return invariants["ux_areas_of_activity_primary"]
	case strings.Contains(msg, "synergies.contact_id, synergies.company_id, synergies.deal_id"):
		return invariants["ux_synergies_active_triple"]
	case strings.Contains(msg, "contact_emails.contact_id") && strings.Contains(msg, "UNIQUE"):
		return invariants["ux_contact_emails_primary"]
	}
	for name, rule := range invariants {
		if strings.Contains(msg, name) {
			return rule
		}
	}
	return ""
}
