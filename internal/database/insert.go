package database

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// ReturningID makes insert write the generated primary key back to its model.
// Restricting the inserted columns drops the key from bun's default RETURNING
// list, so it is requested explicitly; dialects without INSERT ... RETURNING
// fill it from LastInsertId.
func ReturningID(db bun.IDB, insert *bun.InsertQuery) *bun.InsertQuery {
	if db.Dialect().Features().Has(feature.InsertReturning) {
		return insert.Returning("id")
	}
	return insert
}
