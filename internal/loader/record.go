package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Additional-Code/orderbook/internal/entity"
)

// Record is one entry of the order feed: a customer, optional notes, a
// timestamp and the items bought.
type Record struct {
	Name      string       `json:"name"`
	Phone     string       `json:"phone"`
	Notes     *string      `json:"notes,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Items     []ItemRecord `json:"items"`
}

// ItemRecord is an item nested in a feed record.
type ItemRecord struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Validate rejects records that cannot be stored.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: customer name is required", entity.ErrInvalidInput)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp is required", entity.ErrInvalidInput)
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", entity.ErrInvalidInput, i)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item %q has a negative price", entity.ErrInvalidInput, item.Name)
		}
	}
	return nil
}

// Decode reads a JSON array of records.
func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %w", entity.ErrInvalidInput, err)
	}
	return records, nil
}
