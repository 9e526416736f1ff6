package entity

import "errors"

// Store outcomes shared by every repository. Callers match them with
// errors.Is; the wrapped cause carries the driver detail.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	// ErrStore covers store failures outside the other kinds, such as a
	// missing table or an aborted transaction.
	ErrStore = errors.New("store failure")
)
