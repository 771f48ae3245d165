package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean "try again later".
var transientStates = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled (statement_timeout)
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
	"53300": {}, // too_many_connections
}

// IsTransient reports whether err is a store failure after which the
// operation can be retried without risk of double application.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrStoreUnavailable) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		_, ok := transientStates[pgErr.Code]
		return ok
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}

// Classify wraps transient failures with common.ErrStoreUnavailable while
// keeping the original cause reachable through errors.Is/As. Other errors
// are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	return err
}

// IsUniqueViolation reports a unique_violation (23505).
func IsUniqueViolation(err error) bool { return hasState(err, "23505") }

// IsForeignKeyViolation reports a foreign_key_violation (23503), which for
// inserts means the referenced row does not exist.
func IsForeignKeyViolation(err error) bool { return hasState(err, "23503") }

func hasState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
