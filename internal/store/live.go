package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abgdnv/productroom/internal/observable"
	applog "github.com/abgdnv/productroom/pkg/logger"
)

var _ ProductStore = (*LiveStore)(nil)

// LiveStore decorates a ProductStore with a continuously updated view of
// every stored product. Mutations made through it refresh the view before
// they return; engines implementing ChangeListener also refresh it on
// changes made elsewhere once Run is started.
type LiveStore struct {
	engine ProductStore
	all    *observable.Cell[[]Product]
	logger *slog.Logger

	// refreshMu orders reload+publish so an older list never overwrites a newer one
	refreshMu sync.Mutex
}

// NewLiveStore loads the current product list from engine and returns the decorator.
func NewLiveStore(ctx context.Context, engine ProductStore, logger *slog.Logger) (*LiveStore, error) {
	initial, err := engine.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial product list: %w", err)
	}
	return &LiveStore{
		engine: engine,
		all:    observable.NewCell(initial),
		logger: applog.Component(logger, "live_store"),
	}, nil
}

// Products returns the live view of every stored product.
func (l *LiveStore) Products() observable.Observable[[]Product] {
	return l.all
}

// Insert persists the product and refreshes the live view.
func (l *LiveStore) Insert(ctx context.Context, name string, quantity int32) (*Product, error) {
	product, err := l.engine.Insert(ctx, name, quantity)
	if err != nil {
		return nil, err
	}
	if err := l.Refresh(ctx); err != nil {
		l.logger.WarnContext(ctx, "Live view refresh failed after insert", "error", err)
	}
	return product, nil
}

// DeleteByName removes matching products and refreshes the live view.
func (l *LiveStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	count, err := l.engine.DeleteByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := l.Refresh(ctx); err != nil {
			l.logger.WarnContext(ctx, "Live view refresh failed after delete", "error", err)
		}
	}
	return count, nil
}

// FindByName forwards to the underlying engine.
func (l *LiveStore) FindByName(ctx context.Context, name string) ([]Product, error) {
	return l.engine.FindByName(ctx, name)
}

// FindAll forwards to the underlying engine.
func (l *LiveStore) FindAll(ctx context.Context) ([]Product, error) {
	return l.engine.FindAll(ctx)
}

// Refresh reloads every product from the engine and publishes the list.
func (l *LiveStore) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	products, err := l.engine.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh product list: %w", err)
	}
	l.all.Store(products)
	return nil
}

// Run keeps the live view in sync with changes reported by the engine.
// For engines without change notification it just waits for ctx.
func (l *LiveStore) Run(ctx context.Context) error {
	listener, ok := l.engine.(ChangeListener)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	l.logger.InfoContext(ctx, "Listening for product changes")
	return listener.Listen(ctx, func() {
		if err := l.Refresh(ctx); err != nil {
			l.logger.ErrorContext(ctx, "Live view refresh failed after change notification", "error", err)
		}
	})
}
