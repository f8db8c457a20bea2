package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps storage errors to AppError instances:
// - context timeouts/cancellations → Timeout/Canceled
// - missing client_storage table → Internal with a migration hint
// - connection failures → Network
//
// If the error is not a recognized database error, it returns the original error.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "storage request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "storage request was canceled")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable:
			return Wrap(err, ErrCodeInternal, "client storage table is missing; run migrations")
		case pgerrcode.ConnectionException, pgerrcode.ConnectionFailure,
			pgerrcode.SQLClientUnableToEstablishSQLConnection, pgerrcode.AdminShutdown:
			return Wrap(err, ErrCodeNetwork, "storage connection failed")
		case pgerrcode.InsufficientPrivilege:
			return Wrap(err, ErrCodeInternal, "storage access denied")
		}
		if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return Wrap(err, ErrCodeValidation, "storage constraint violated")
		}
	}

	return err
}
