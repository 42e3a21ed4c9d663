// Package sqlite provides an interface into SQLite compatible with the rest
// of the DeliciousFood packages.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"modernc.org/sqlite"
)

// Open opens (creating if necessary) the SQLite database at the given path
// and verifies the connection. Foreign-key enforcement is switched on; the
// schema relies on it.
func Open(path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, WrapDBError(err)
	}

	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		sqlDB.Close()
		return nil, WrapDBError(err)
	}
	return sqlDB, nil
}

// WrapDBError wraps an error from the SQLite engine into an error useable by
// the rest of the DeliciousFood packages. It should be called on any error
// returned from SQLite before a repository passes the error back to a caller.
func WrapDBError(err error) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xff
		if primaryCode == 19 {
			return fmt.Errorf("%w: %s", deliciousfood.ErrConstraintViolation, err.Error())
		}
		if primaryCode == 1 {
			// this is a generic error and thus the string is not descriptive,
			// so preserve the original error instead
			return err
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return deliciousfood.ErrNotFound
	}
	return err
}
