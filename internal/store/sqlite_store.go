package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements ProductStore on top of an embedded SQLite database.
type SqliteStore struct {
	db   *sql.DB
	path string
}

// SqlitePath returns the database file used for the given directory.
func SqlitePath(dir string) string {
	return filepath.Join(dir, DatabaseName+".db")
}

// OpenSqlite opens (creating if needed) the product database in dir,
// applies the schema and returns a ready store.
func OpenSqlite(ctx context.Context, dir string) (*SqliteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	path := SqlitePath(dir)
	if _, err := MigrateSqlite(path); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SqliteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SqliteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Insert adds a new product to the database.
func (s *SqliteStore) Insert(ctx context.Context, name string, quantity int32) (*Product, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (product_name, quantity) VALUES (?, ?)`, name, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted product ID: %w", err)
	}
	return &Product{ID: id, ProductName: name, Quantity: quantity}, nil
}

// FindByName retrieves products by exact name.
func (s *SqliteStore) FindByName(ctx context.Context, name string) ([]Product, error) {
	products, err := s.query(ctx,
		`SELECT id, product_name, quantity FROM products WHERE product_name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by name: %w", err)
	}
	return products, nil
}

// DeleteByName deletes products by exact name.
func (s *SqliteStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE product_name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products by name: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows count: %w", err)
	}
	return count, nil
}

// FindAll retrieves all products.
func (s *SqliteStore) FindAll(ctx context.Context) ([]Product, error) {
	products, err := s.query(ctx, `SELECT id, product_name, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	return products, nil
}

func (s *SqliteStore) query(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ProductName, &p.Quantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
