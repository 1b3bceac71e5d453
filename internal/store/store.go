// Package store provides an interface for product storage operations.
package store

import "context"

const (
	// DatabaseName identifies the product database for every engine.
	DatabaseName = "product_database"

	// SchemaVersion is the only schema version the migrations produce.
	SchemaVersion = 1
)

// Product represents a persisted product record.
type Product struct {
	ID          int64  `db:"id"`
	ProductName string `db:"product_name"`
	Quantity    int32  `db:"quantity"`
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., sqlite, postgres, in-memory).
type ProductStore interface {
	// Insert persists a new product and assigns it a fresh, never reused ID.
	Insert(ctx context.Context, name string, quantity int32) (*Product, error)

	// FindByName returns every product whose name equals name exactly, ordered by ID.
	// Returns an empty slice if nothing matches.
	FindByName(ctx context.Context, name string) ([]Product, error)

	// DeleteByName removes every product whose name equals name exactly and
	// returns how many were removed. Zero matches is not an error.
	DeleteByName(ctx context.Context, name string) (int64, error)

	// FindAll returns every stored product in insertion order.
	FindAll(ctx context.Context) ([]Product, error)
}

// ChangeListener is implemented by engines that can report changes made
// outside this process (e.g. through another database connection).
type ChangeListener interface {
	// Listen calls onChange after every committed change until ctx is done.
	Listen(ctx context.Context, onChange func()) error
}
