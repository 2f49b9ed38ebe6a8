// package repositories provides the persistence layer for lyric lookups and imported songs
package repositories

import (
	"database/sql"
	"errors"
)

// scanner is satisfied by [*sql.Row] and [*sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
