package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgForeignKeyViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUUID reports whether id can match a row. Ids are UUID columns on
// PostgreSQL, where comparing against anything else is a query error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// uuidsOnly drops ids that cannot match any row.
func uuidsOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			out = append(out, id)
		}
	}
	return out
}

// passThrough reports errors that already carry their meaning and must not be
// re-labelled as persistence failures.
func passThrough(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, ErrVersionConflict)
}

// wrap labels storage failures as domain.ErrPersistence, keeping domain errors intact.
func wrap(op string, err error) error {
	if err == nil || passThrough(err) {
		return err
	}
	return domain.Persistence(op, err)
}

// whereRefsContain restricts q to rows whose JSON id-set column holds id.
func whereRefsContain(db bun.IDB, q *bun.SelectQuery, column bun.Ident, id string) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return q.Where("? @> ?", column, models.IDSet{id})
	}
	return q.Where("EXISTS (SELECT 1 FROM json_each(?) AS ref WHERE ref.value = ?)", column, id)
}
