package database

import (
	"context"

	"github.com/uptrace/bun"
)

type txKey struct{}

// RunInTx runs fn inside a writer transaction carried on the context. A
// transaction already on ctx is joined instead of nested. The transaction is
// rolled back whenever fn returns an error or panics.
func (c *Connections) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return c.Writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bun.Tx)
	return ok
}

// WriterFor returns the transaction on ctx, or the writer pool.
func (c *Connections) WriterFor(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return c.Writer
}

// ReaderFor returns the transaction on ctx so reads see its own writes,
// otherwise the reader pool.
func (c *Connections) ReaderFor(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return c.Reader
}

// RunInSavepoint runs fn under a savepoint of the transaction on ctx. A
// failing fn rolls back only its own statements and the enclosing
// transaction stays usable. Without a transaction on ctx it is RunInTx.
func (c *Connections) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return c.RunInTx(ctx, fn)
	}
	return tx.RunInTx(ctx, nil, func(ctx context.Context, sp bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, sp))
	})
}
