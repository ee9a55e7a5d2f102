package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrForeignKey reports a write that referenced a missing parent row.
var ErrForeignKey = errors.New("store: foreign key violation")

// Classify maps driver-specific constraint errors onto store sentinels.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isForeignKey(err) {
		return errors.Join(ErrForeignKey, err)
	}
	return err
}

func isForeignKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "FOREIGN KEY")
	}
	return false
}
