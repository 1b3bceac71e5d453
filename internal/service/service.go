// Package service coordinates product operations and the list shown to the user.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abgdnv/productroom/internal/config"
	perrors "github.com/abgdnv/productroom/internal/errors"
	"github.com/abgdnv/productroom/internal/observable"
	"github.com/abgdnv/productroom/internal/store"
	applog "github.com/abgdnv/productroom/pkg/logger"
	"github.com/abgdnv/productroom/pkg/messaging"
	"github.com/abgdnv/productroom/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/abgdnv/productroom/internal/service"

// ProductService is the single coordination point between the surfaces and the store.
// Mutating operations are queued and executed one at a time in submission order.
type ProductService interface {
	// AddProduct stores a product. quantityText is coerced with ParseQuantity.
	AddProduct(name, quantityText string) *Task[ProductDto]

	// DeleteProduct removes every product named exactly name and yields how many were removed.
	DeleteProduct(name string) *Task[int64]

	// FindProduct looks up products named exactly name and makes the result
	// the active search, even when it is empty.
	FindProduct(name string) *Task[[]ProductDto]

	// DisplayList returns the active search result, or every product when no search ran yet.
	DisplayList() []ProductDto

	// AllProducts returns every stored product.
	AllProducts() []ProductDto

	// SubscribeDisplay delivers DisplayList now and whenever it may have changed,
	// until ctx is done.
	SubscribeDisplay(ctx context.Context) <-chan []ProductDto
}

// LiveProductStore is a ProductStore that also exposes a live view of all products.
type LiveProductStore interface {
	store.ProductStore
	Products() observable.Observable[[]store.Product]
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID          int64  `json:"id"`
	ProductName string `json:"productName"`
	Quantity    int32  `json:"quantity"`
}

// searchState is the result view: inactive until the first search completes.
type searchState struct {
	active  bool
	results []ProductDto
}

type job struct {
	run  func(ctx context.Context)
	fail func(err error)
}

var _ ProductService = (*Service)(nil)

// Service implements ProductService on top of a LiveProductStore.
type Service struct {
	store     LiveProductStore
	publisher messaging.Publisher
	logger    *slog.Logger
	opTimeout time.Duration

	search *observable.Cell[searchState]

	jobs     chan job
	stopping chan struct{}
	mu       sync.RWMutex
	stopped  bool
	started  atomic.Bool

	tracer   trace.Tracer
	added    metric.Int64Counter
	deleted  metric.Int64Counter
	searches metric.Int64Counter
}

// NewService creates a Service. Operations are accepted right away but only
// executed once Run is started.
func NewService(products LiveProductStore, publisher messaging.Publisher, cfg config.ServiceConfig, logger *slog.Logger) (*Service, error) {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	meter := otel.Meter(instrumentationName)
	added, err := meter.Int64Counter("products_added_total", metric.WithDescription("Products stored"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	deleted, err := meter.Int64Counter("products_deleted_total", metric.WithDescription("Products removed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	searches, err := meter.Int64Counter("product_searches_total", metric.WithDescription("Searches by product name"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	return &Service{
		store:     products,
		publisher: publisher,
		logger:    applog.Component(logger, "product_service"),
		opTimeout: cfg.OpTimeout,
		search:    observable.NewCell(searchState{}),
		jobs:      make(chan job, cfg.QueueSize),
		stopping:  make(chan struct{}),
		tracer:    otel.Tracer(instrumentationName),
		added:     added,
		deleted:   deleted,
		searches:  searches,
	}, nil
}

// ParseQuantity converts user text to a quantity. Anything that is not a
// non-negative base-10 int32 becomes 0.
func ParseQuantity(text string) int32 {
	q, err := strconv.ParseInt(text, 10, 32)
	if err != nil || q < 0 {
		return 0
	}
	return int32(q)
}

// Run executes queued operations until ctx is done. Operations still queued
// and those submitted afterwards fail with ErrServiceStopped.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("product service is already running")
	}
	s.logger.InfoContext(ctx, "Product service worker started")
	defer s.shutdown()
	for {
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "Product service worker stopping")
			return nil
		}
		select {
		case <-ctx.Done():
		case j := <-s.jobs:
			s.execute(ctx, j)
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) {
	opCtx := ctx
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	j.run(opCtx)
}

func (s *Service) shutdown() {
	close(s.stopping)
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	for {
		select {
		case j := <-s.jobs:
			j.fail(perrors.ErrServiceStopped)
		default:
			return
		}
	}
}

// submit queues j, blocking while the queue is full.
func (s *Service) submit(j job) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		j.fail(perrors.ErrServiceStopped)
		return
	}
	select {
	case s.jobs <- j:
	case <-s.stopping:
		j.fail(perrors.ErrServiceStopped)
	}
}

func (s *Service) AddProduct(name, quantityText string) *Task[ProductDto] {
	task := newTask[ProductDto]()
	s.submit(job{
		fail: task.fail,
		run: func(ctx context.Context) {
			quantity := ParseQuantity(quantityText)
			ctx, span := s.tracer.Start(ctx, "ProductService.AddProduct", trace.WithAttributes(
				attribute.String("product.name", name),
				attribute.Int("product.quantity", int(quantity)),
			))
			defer span.End()

			product, err := s.store.Insert(ctx, name, quantity)
			if err != nil {
				err = fmt.Errorf("failed to add product %q: %w", name, err)
				s.recordError(ctx, span, err)
				task.fail(err)
				return
			}
			span.SetAttributes(attribute.Int64("product.id", product.ID))
			s.added.Add(ctx, 1)
			s.logger.InfoContext(ctx, "Product added", "ID", product.ID, "name", product.ProductName, "quantity", product.Quantity)
			s.publish(ctx, events.ProductAddedEvent{
				ID:          product.ID,
				ProductName: product.ProductName,
				Quantity:    product.Quantity,
				CreatedAt:   time.Now().UTC(),
			})
			task.complete(toDto(*product), nil)
		},
	})
	return task
}

func (s *Service) DeleteProduct(name string) *Task[int64] {
	task := newTask[int64]()
	s.submit(job{
		fail: task.fail,
		run: func(ctx context.Context) {
			ctx, span := s.tracer.Start(ctx, "ProductService.DeleteProduct", trace.WithAttributes(
				attribute.String("product.name", name),
			))
			defer span.End()

			count, err := s.store.DeleteByName(ctx, name)
			if err != nil {
				err = fmt.Errorf("failed to delete products named %q: %w", name, err)
				s.recordError(ctx, span, err)
				task.fail(err)
				return
			}
			span.SetAttributes(attribute.Int64("products.deleted", count))
			s.logger.InfoContext(ctx, "Products deleted", "name", name, "count", count)
			if count > 0 {
				s.deleted.Add(ctx, count)
				s.publish(ctx, events.ProductsDeletedEvent{
					ProductName: name,
					Count:       count,
					DeletedAt:   time.Now().UTC(),
				})
			}
			task.complete(count, nil)
		},
	})
	return task
}

func (s *Service) FindProduct(name string) *Task[[]ProductDto] {
	task := newTask[[]ProductDto]()
	s.submit(job{
		fail: task.fail,
		run: func(ctx context.Context) {
			ctx, span := s.tracer.Start(ctx, "ProductService.FindProduct", trace.WithAttributes(
				attribute.String("product.name", name),
			))
			defer span.End()

			found, err := s.store.FindByName(ctx, name)
			if err != nil {
				err = fmt.Errorf("failed to find products named %q: %w", name, err)
				s.recordError(ctx, span, err)
				task.fail(err)
				return
			}
			results := toDtos(found)
			span.SetAttributes(attribute.Int("products.found", len(results)))
			s.searches.Add(ctx, 1)
			s.search.Store(searchState{active: true, results: results})
			s.logger.DebugContext(ctx, "Search completed", "name", name, "count", len(results))
			task.complete(slices.Clone(results), nil)
		},
	})
	return task
}

func (s *Service) DisplayList() []ProductDto {
	return displayOf(s.store.Products().Load(), s.search.Load())
}

func (s *Service) AllProducts() []ProductDto {
	return toDtos(s.store.Products().Load())
}

// SubscribeDisplay re-evaluates the display list whenever the stored products
// or the search result change. A slow reader only receives the latest list.
func (s *Service) SubscribeDisplay(ctx context.Context) <-chan []ProductDto {
	out := make(chan []ProductDto)
	go func() {
		defer close(out)
		observable.Watch(ctx, s.store.Products(), observable.Observable[searchState](s.search), func(all []store.Product, search searchState) {
			select {
			case out <- displayOf(all, search):
			case <-ctx.Done():
			}
		})
	}()
	return out
}

func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func (s *Service) recordError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.ErrorContext(ctx, "Product operation failed", "error", err)
}

func displayOf(all []store.Product, search searchState) []ProductDto {
	if search.active {
		// callers own the result, the cell keeps its copy
		return slices.Clone(search.results)
	}
	return toDtos(all)
}

func toDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = toDto(p)
	}
	return dtos
}

func toDto(p store.Product) ProductDto {
	return ProductDto{
		ID:          p.ID,
		ProductName: p.ProductName,
		Quantity:    p.Quantity,
	}
}
