package entity

import (
	"fmt"
	"math"
	"strings"

	"github.com/uptrace/bun"
)

// Item is a catalog entry. Name is the natural key; price belongs to the
// name and is fixed when the item is first created by the loader.
type Item struct {
	bun.BaseModel `bun:"table:items"`

	ID    int64   `bun:"id,pk,autoincrement" json:"id"`
	Name  string  `bun:"name,notnull,unique" json:"name"`
	Price float64 `bun:"price,notnull" json:"price"`
}

func (i *Item) PrimaryKey() int64 { return i.ID }

func (i *Item) Kind() string { return "item" }

func (i *Item) NaturalKey() []Column {
	return []Column{{Name: "name", Value: i.Name}}
}

func (i *Item) MutableColumns() []string { return []string{"name", "price"} }

// Validate checks the fields required by the request layer.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if i.Price < 0 || math.IsNaN(i.Price) || math.IsInf(i.Price, 0) {
		return fmt.Errorf("%w: item price must be a non-negative number", ErrInvalidInput)
	}
	return nil
}
