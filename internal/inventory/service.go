// Package inventory turns user intents into item mutations. Mutations are
// fire-and-forget: they are queued on a single serial worker and callers
// observe their effect through the live queries.
package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/inventar/internal/live"
	"github.com/erazemk/inventar/internal/metrics"
	"github.com/erazemk/inventar/internal/model"
	"github.com/erazemk/inventar/internal/worker"
)

// Kind identifies the inventory service when resolving services by name.
const Kind = "inventory"

// Repository is the storage surface the service depends on.
type Repository interface {
	Insert(ctx context.Context, item *model.Item) (int64, error)
	Update(ctx context.Context, item model.Item) error
	Delete(ctx context.Context, item model.Item) error
	QueryAll() *live.Query[[]model.Item]
	QueryOne(id int64) *live.Query[*model.Item]
	SetImage(ctx context.Context, id int64, data []byte, mime string) error
	Image(ctx context.Context, id int64) ([]byte, string, error)
}

// ErrorHandler receives the failure of an asynchronous mutation.
type ErrorHandler func(op string, item model.Item, err error)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records mutation outcomes and exports the queue depth.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithErrorHandler replaces the default handler, which logs the failure.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Service) {
		if h != nil {
			s.onError = h
		}
	}
}

// Service is the entry point for item mutations.
type Service struct {
	repo    Repository
	queue   *worker.Queue
	logger  *slog.Logger
	metrics *metrics.Metrics
	onError ErrorHandler
}

// NewService creates a service and starts its mutation queue.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onError == nil {
		s.onError = s.logError
	}

	s.queue = worker.NewQueue(Kind, s.logger)
	s.queue.Start()

	if err := s.metrics.GaugeFunc("mutation_queue_depth", "Item mutations waiting to run.", func() float64 {
		return float64(s.queue.Len())
	}); err != nil {
		s.logger.Warn("registering queue depth gauge", "error", err)
	}
	return s
}

// IsEntryValid reports whether all three fields contain a non-whitespace
// character.
func IsEntryValid(name, description, itemType string) bool {
	return !isBlank(name) && !isBlank(description) && !isBlank(itemType)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsEntryValid is the method form of the package-level IsEntryValid.
func (s *Service) IsEntryValid(name, description, itemType string) bool {
	return IsEntryValid(name, description, itemType)
}

// AddNewItem queues the insert of a new item. The store assigns its id.
func (s *Service) AddNewItem(name, description, itemType string) {
	item := model.Item{Name: name, Description: description, Type: itemType}
	s.dispatch("insert", item, func(ctx context.Context) error {
		_, err := s.repo.Insert(ctx, &item)
		return err
	})
}

// UpdateItem queues a full replacement of the item with the given id.
func (s *Service) UpdateItem(id int64, name, description, itemType string) {
	item := model.Item{ID: id, Name: name, Description: description, Type: itemType}
	s.dispatch("update", item, func(ctx context.Context) error {
		return s.repo.Update(ctx, item)
	})
}

// DeleteItem queues the removal of item.
func (s *Service) DeleteItem(item model.Item) {
	s.dispatch("delete", item, func(ctx context.Context) error {
		return s.repo.Delete(ctx, item)
	})
}

// SetItemImage queues the replacement of an item's photo.
func (s *Service) SetItemImage(id int64, data []byte, mime string) {
	s.dispatch("set_image", model.Item{ID: id}, func(ctx context.Context) error {
		return s.repo.SetImage(ctx, id, data, mime)
	})
}

// ItemImage returns the stored photo of an item, or nil when it has none.
func (s *Service) ItemImage(ctx context.Context, id int64) ([]byte, string, error) {
	return s.repo.Image(ctx, id)
}

// RetrieveItem returns the live query for a single item.
func (s *Service) RetrieveItem(id int64) *live.Query[*model.Item] {
	return s.repo.QueryOne(id)
}

// AllItems returns the live query for the whole collection.
func (s *Service) AllItems() *live.Query[[]model.Item] {
	return s.repo.QueryAll()
}

// Sync waits until every mutation queued before the call has run.
func (s *Service) Sync(ctx context.Context) error {
	return s.queue.Drain(ctx)
}

// Pending returns the number of queued mutations.
func (s *Service) Pending() int {
	return s.queue.Len()
}

// Close cancels all queued mutations. Later intents are dropped.
func (s *Service) Close() {
	s.queue.Stop()
}

func (s *Service) dispatch(op string, item model.Item, fn func(ctx context.Context) error) {
	job := worker.Job{
		Name: op,
		Run: func(ctx context.Context) error {
			start := time.Now()
			err := fn(ctx)
			s.metrics.ObserveMutation(op, err, time.Since(start))
			return err
		},
		OnError: func(err error) { s.onError(op, item, err) },
	}
	if err := s.queue.Submit(job); err != nil {
		s.logger.Warn("dropping item mutation", "op", op, "item_id", item.ID, "error", err)
	}
}

func (s *Service) logError(op string, item model.Item, err error) {
	s.logger.Error("item mutation failed", "op", op, "item_id", item.ID, "error", err)
}
