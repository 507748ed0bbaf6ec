package store

import (
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/apperr"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// mapError translates driver errors into the application taxonomy so that
// raw driver text never reaches a client.
func mapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, resource+" not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("%s already exists", resource))
		case pqForeignKeyViolation:
			return apperr.Wrap(apperr.KindInvalidRequest, err, fmt.Sprintf("%s references a missing record", resource))
		case pqCheckViolation:
			return apperr.Wrap(apperr.KindInvalidRequest, err, fmt.Sprintf("%s has an invalid value", resource))
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// expectOne returns NotFound when an UPDATE or DELETE touched no row.
func expectOne(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}
