package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConstraint is returned when a write violates a table constraint, such as
// inserting an item with an id that is already taken.
var ErrConstraint = errors.New("store: constraint violation")

// ErrNotFound is returned by user writes that match no row. Item writes that
// match nothing are silent no-ops instead.
var ErrNotFound = errors.New("store: not found")

// isConstraint reports whether err is a SQLite constraint failure. Extended
// result codes keep the primary code in the low byte.
func isConstraint(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
