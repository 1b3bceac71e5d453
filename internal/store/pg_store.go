package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// changeChannel is the LISTEN/NOTIFY channel fed by the products_changed trigger.
const changeChannel = "products_changed"

var _ ChangeListener = (*PgStore)(nil)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

// Insert adds a new product to the system.
// Returns an error if the product cannot be created.
func (p *PgStore) Insert(ctx context.Context, name string, quantity int32) (*Product, error) {
	rows, err := p.db.Query(ctx,
		`INSERT INTO products (product_name, quantity) VALUES ($1, $2) RETURNING id, product_name, quantity`,
		name, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	product, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return &product, nil
}

// FindByName retrieves products whose name matches exactly.
// It returns a slice of products, which may be empty if nothing matches.
func (p *PgStore) FindByName(ctx context.Context, name string) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, product_name, quantity FROM products WHERE product_name = $1 ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by name: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to find products by name: %w", err)
	}
	return products, nil
}

// DeleteByName removes every product whose name matches exactly.
func (p *PgStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE product_name = $1`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products by name: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindAll retrieves all products in insertion order.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, `SELECT id, product_name, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	return products, nil
}

// Listen holds one pooled connection in LISTEN mode and calls onChange for
// every notification raised by the products_changed trigger.
func (p *PgStore) Listen(ctx context.Context, onChange func()) error {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}
	defer func() {
		// the connection goes back to the pool, stop listening first
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+changeChannel)
	}()

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for %s notification: %w", changeChannel, err)
		}
		onChange()
	}
}
