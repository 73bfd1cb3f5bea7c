package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"convtree/internal/domain"
)

// Postgres error codes we branch on
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// classify maps driver errors onto the domain taxonomy
func classify(op, resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case isPgNoRowsError(err):
		return domain.NewNotFound(resource, id)
	case isPgDuplicateError(err):
		return &domain.ConflictError{
			Message:      fmt.Sprintf("%s %s already exists", resource, id),
			ResourceType: resource,
			ResourceID:   id,
		}
	case isPgForeignKeyError(err):
		return domain.NewValidation(fmt.Sprintf("%s %s references a missing row", resource, id), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
