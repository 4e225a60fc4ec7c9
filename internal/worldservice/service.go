// Package worldservice is the application layer over the world model. The
// HTTP API, the MCP server, the CLI and the journal inbox all go through it.
package worldservice

import (
	"context"
	"log/slog"

	"github.com/starford/dreamland/internal/consolidate"
	"github.com/starford/dreamland/internal/metrics"
	"github.com/starford/dreamland/internal/store"
)

// Scheduler queues a dream for background reconciliation without blocking.
// *worker.Queue satisfies it.
type Scheduler interface {
	Enqueue(dreamID int64) bool
}

// Publisher announces world changes. *sse.Broker satisfies it.
type Publisher interface {
	PublishChange(kind string, data any)
}

// Service coordinates the world store, the merge/split operator, the
// processing queue and change notifications.
type Service struct {
	db      *store.DB
	ops     *consolidate.Operator
	sched   Scheduler
	events  Publisher
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithScheduler sets the queue new dreams are handed to. Without one,
// dreams are stored unprocessed and must be processed explicitly.
func WithScheduler(s Scheduler) Option {
	return func(svc *Service) { svc.sched = s }
}

// WithPublisher sets the change notification sink.
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.events = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// New creates a Service over db.
func New(db *store.DB, opts ...Option) *Service {
	svc := &Service{db: db, ops: consolidate.New(db), logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) publish(kind string, data any) {
	if s.events != nil {
		s.events.PublishChange(kind, data)
	}
}

func (s *Service) schedule(dreamID int64) bool {
	if s.sched == nil {
		return false
	}
	return s.sched.Enqueue(dreamID)
}

// Ping checks the store; used by readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
