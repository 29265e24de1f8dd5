package errx

import (
	"database/sql"
	"errors"
)

// WrapSQL maps database/sql errors the same way WrapRedis does for Redis.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(err)
	}
	return Transport(err, SQLErrorMessage)
}
