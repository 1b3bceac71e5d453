package store

import (
	"context"
	"sync"
)

// InMemoryStore implements ProductStore using an in-memory slice.
type InMemoryStore struct {
	mu       sync.RWMutex
	products []Product
	nextID   int64
}

// NewInMemoryStore creates a new instance of ProductStore
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make([]Product, 0),
		nextID:   1,
	}
}

// Insert creates a new product and returns it.
func (s *InMemoryStore) Insert(_ context.Context, name string, quantity int32) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := Product{
		ID:          s.nextID,
		ProductName: name,
		Quantity:    quantity,
	}
	s.nextID++
	s.products = append(s.products, product)

	return &product, nil
}

// FindByName retrieves products by exact name.
func (s *InMemoryStore) FindByName(_ context.Context, name string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0)
	for _, p := range s.products {
		if p.ProductName == name {
			list = append(list, p)
		}
	}
	return list, nil
}

// DeleteByName deletes products by exact name.
func (s *InMemoryStore) DeleteByName(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.products[:0]
	var deleted int64
	for _, p := range s.products {
		if p.ProductName == name {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.products = kept
	return deleted, nil
}

// FindAll retrieves all products.
func (s *InMemoryStore) FindAll(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, len(s.products))
	copy(list, s.products)
	return list, nil
}
