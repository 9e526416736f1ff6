package entity

import (
	"fmt"

	"github.com/uptrace/bun"
)

// Order links one customer to one item. Orders have no natural key; a
// customer may order the same item any number of times.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	CustomerID int64   `bun:"customer_id,notnull" json:"customer_id"`
	ItemID     int64   `bun:"item_id,notnull" json:"item_id"`
	Notes      *string `bun:"notes" json:"notes,omitempty"`
	Timestamp  int64   `bun:"timestamp,notnull" json:"timestamp"`
}

// Validate checks that both references are set and the timestamp is not
// negative. A zero timestamp is filled in by the service.
func (o *Order) Validate() error {
	if o.CustomerID <= 0 || o.ItemID <= 0 {
		return fmt.Errorf("%w: customer_id and item_id are required", ErrInvalidInput)
	}
	if o.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must not be negative", ErrInvalidInput)
	}
	return nil
}
