package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/akirachix/mlimizone-backend/internal/repository"
)

const uniqueViolation = "23505"

// wrap annotates err and maps driver errors onto the repository sentinels.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to %s: %w", op, repository.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("failed to %s (%s): %w", op, pqErr.Constraint, repository.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

type scanner interface {
	Scan(dest ...any) error
}
