package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Additional-Code/orderbook/internal/entity"
)

var taxonomy = []error{
	entity.ErrNotFound,
	entity.ErrDuplicateKey,
	entity.ErrForeignKeyViolation,
	entity.ErrStoreUnavailable,
	entity.ErrInvalidInput,
	entity.ErrStore,
}

// Classify maps driver and context errors onto the entity error taxonomy.
// The original error stays wrapped. Errors already carrying a taxonomy kind
// are returned unchanged; anything else becomes entity.ErrStore.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	kind := kindOf(err)
	if kind == nil {
		if classified(err) {
			return err
		}
		kind = entity.ErrStore
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func classified(err error) bool {
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying: lock contention,
// serialization failures and dropped connections. Caller deadlines are not
// transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(Classify(err), entity.ErrStoreUnavailable)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return entity.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return entity.ErrStoreUnavailable
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteKind(liteErr)
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return postgresKind(pgErr.Field('C'))
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr.Number)
	}

	return nil
}

func sqliteKind(err sqlite3.Error) error {
	switch err.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return entity.ErrStoreUnavailable
	case sqlite3.ErrConstraint:
		switch err.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return entity.ErrDuplicateKey
		case sqlite3.ErrConstraintForeignKey:
			return entity.ErrForeignKeyViolation
		default:
			return entity.ErrInvalidInput
		}
	}
	return nil
}

// postgresKind classifies by SQLSTATE.
func postgresKind(code string) error {
	switch {
	case code == "23505":
		return entity.ErrDuplicateKey
	case code == "23503":
		return entity.ErrForeignKeyViolation
	case strings.HasPrefix(code, "23"), strings.HasPrefix(code, "22"):
		return entity.ErrInvalidInput
	case code == "40001", code == "40P01", code == "55P03", code == "57014", code == "25P02",
		strings.HasPrefix(code, "08"):
		return entity.ErrStoreUnavailable
	}
	return nil
}

func mysqlKind(number uint16) error {
	switch number {
	case 1062:
		return entity.ErrDuplicateKey
	case 1451, 1452:
		return entity.ErrForeignKeyViolation
	case 1048, 1264, 1406:
		return entity.ErrInvalidInput
	case 1205, 1213:
		return entity.ErrStoreUnavailable
	}
	return nil
}
