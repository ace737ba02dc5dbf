package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SQLSTATE коды, которые различает слой хранения.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == sqlStateUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == sqlStateCheckViolation
}

// classifyError помечает конфликты сериализации и дедлоки как ErrTransactionConflict.
func classifyError(err error) error {
	switch pgErrorCode(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrTransactionConflict, err)
	default:
		return err
	}
}
