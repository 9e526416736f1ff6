// Package outcome translates store outcomes into transport-neutral
// application errors.
package outcome

import (
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/pkg/errorbank"
)

// Translate maps err onto an errorbank error. subject names the entity in
// the not-found and conflict messages.
func Translate(err error, subject string) error {
	if err == nil {
		return nil
	}
	return errorbank.Match(err,
		errorbank.Rule{Target: entity.ErrNotFound, Kind: errorbank.KindNotFound, Message: subject + " not found"},
		errorbank.Rule{Target: entity.ErrDuplicateKey, Kind: errorbank.KindConflict, Message: subject + " already exists"},
		errorbank.Rule{Target: entity.ErrForeignKeyViolation, Kind: errorbank.KindUnprocessableEntity, Message: "invalid reference"},
		errorbank.Rule{Target: entity.ErrInvalidInput, Kind: errorbank.KindBadRequest, Message: "invalid input"},
		errorbank.Rule{Target: entity.ErrStoreUnavailable, Kind: errorbank.KindUnavailable, Message: "store unavailable"},
		errorbank.Rule{Target: entity.ErrStore, Kind: errorbank.KindInternal, Message: "store error"},
	)
}
