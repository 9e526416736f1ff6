package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Customer{Name: "Alice", Phone: ""}).Validate())
	assert.ErrorIs(t, (&Customer{Name: "  "}).Validate(), ErrInvalidInput)

	assert.NoError(t, (&Item{Name: "Water", Price: 0}).Validate())
	assert.ErrorIs(t, (&Item{Name: "Coffee", Price: -0.5}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Item{Name: "Coffee", Price: math.NaN()}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Item{Price: 1}).Validate(), ErrInvalidInput)

	assert.NoError(t, (&Order{CustomerID: 1, ItemID: 1}).Validate())
	assert.ErrorIs(t, (&Order{CustomerID: 1}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Order{CustomerID: 1, ItemID: 1, Timestamp: -1}).Validate(), ErrInvalidInput)
}

func TestNaturalKeys(t *testing.T) {
	c := &Customer{Name: "Alice", Phone: "555-1"}
	assert.Equal(t, []Column{{"name", "Alice"}, {"phone", "555-1"}}, c.NaturalKey())

	i := &Item{Name: "Coffee", Price: 3.5}
	assert.Equal(t, []Column{{"name", "Coffee"}}, i.NaturalKey())
	assert.Equal(t, []string{"name", "price"}, i.MutableColumns())
}
