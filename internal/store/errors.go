// ABOUTME: Sentinel errors for the store layer and pg error translation.
// ABOUTME: Handlers map these to HTTP statuses without exposing database detail.
package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row is absent or hidden by the row
	// policies. The two cases are deliberately indistinguishable so callers
	// cannot probe for the existence of another tenant's rows.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for uniqueness violations inside a scoped write,
	// e.g. a duplicate customer account number.
	ErrConflict = errors.New("conflict")

	// ErrPoolExhausted is returned when no pooled connection became available
	// within the configured acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)

// translateErr maps Postgres error codes onto store sentinels. Unique
// violations become ErrConflict; everything else passes through unchanged for
// the caller to log and surface generically.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrConflict
	}
	return err
}
