package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidPattern is returned when a history search text is not a valid regular expression.
var ErrInvalidPattern = errors.New("invalid search pattern")

// isInvalidRegex checks if the error is a PostgreSQL invalid regular expression error (code 2201B).
func isInvalidRegex(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "2201B"
	}
	return false
}
