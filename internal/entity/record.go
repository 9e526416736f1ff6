package entity

// Column is a named value used to match a row by its natural key.
type Column struct {
	Name  string
	Value any
}

// Record is implemented by entities deduplicated on a natural key.
type Record interface {
	PrimaryKey() int64
	// Kind names the entity in errors and logs.
	Kind() string
	NaturalKey() []Column
	// MutableColumns lists the columns replaced by a full update.
	MutableColumns() []string
}

var (
	_ Record = (*Customer)(nil)
	_ Record = (*Item)(nil)
)
