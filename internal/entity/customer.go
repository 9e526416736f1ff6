package entity

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Customer is a person-contact pair; (name, phone) identifies it.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID    int64  `bun:"id,pk,autoincrement" json:"id"`
	Name  string `bun:"name,notnull,unique:customers_name_phone_key" json:"name"`
	Phone string `bun:"phone,notnull,unique:customers_name_phone_key" json:"phone"`
}

func (c *Customer) PrimaryKey() int64 { return c.ID }

func (c *Customer) Kind() string { return "customer" }

func (c *Customer) NaturalKey() []Column {
	return []Column{{Name: "name", Value: c.Name}, {Name: "phone", Value: c.Phone}}
}

func (c *Customer) MutableColumns() []string { return []string{"name", "phone"} }

// Validate checks the fields required by the request layer.
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	return nil
}
