package repo

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/crm-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx rebinds the repository to an open transaction.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate returns a query that row-locks what it selects until the
// surrounding transaction ends. SQLite ignores the clause and relies on its
// single writer instead.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	return b.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsSQLite reports whether the bound connection talks to SQLite.
func (b Base) IsSQLite() bool {
	return b.db != nil && b.db.Dialector != nil && b.db.Dialector.Name() == "sqlite"
}

// WhereTag narrows q to rows whose JSON tag array in column contains tag.
func (b Base) WhereTag(q *gorm.DB, column, tag string) *gorm.DB {
	if tag == "" {
		return q
	}
	if b.IsSQLite() {
		return q.Where("EXISTS (SELECT 1 FROM json_each("+column+") WHERE json_each.value = ?)", tag)
	}
	raw, _ := json.Marshal([]string{tag})
	return q.Where(column+" @> ?::jsonb", string(raw))
}

// StorageError translates a storage failure into a typed error. Missing rows
// become NOT_FOUND, unique index hits become CONFLICT, anything else is a
// dependency failure.
func StorageError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.As(err) != nil:
		return err
	case db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, msg)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}
