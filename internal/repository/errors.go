package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrInvalidData is returned when the database refuses a value that does not fit its column
var ErrInvalidData = errors.New("invalid data")

// pgNotNullViolation is the postgres SQLSTATE for a NULL in a NOT NULL column
const pgNotNullViolation = "23502"

// translateWriteError maps value-level rejections from the database onto ErrInvalidData,
// keeping the database message so callers can show it. Other errors pass through.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 22 is "data exception": overflow, truncation, bad format
		if strings.HasPrefix(pgErr.Code, "22") || pgErr.Code == pgNotNullViolation {
			msg := pgErr.Message
			if pgErr.ColumnName != "" {
				msg = pgErr.ColumnName + ": " + msg
			}
			return fmt.Errorf("%w: %s", ErrInvalidData, msg)
		}
	}
	return err
}
