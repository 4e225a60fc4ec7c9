// Package worker runs dream reconciliation in the background on a bounded
// queue with a fixed number of workers.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/starford/dreamland/internal/metrics"
	"github.com/starford/dreamland/internal/reconcile"
)

// Processor reconciles one dream. *reconcile.Engine satisfies it.
type Processor interface {
	Process(ctx context.Context, dreamID int64) (reconcile.Outcome, error)
}

// Config sizes the pool.
type Config struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// DoneFunc observes every finished processing attempt.
type DoneFunc func(out reconcile.Outcome, err error)

// Queue feeds dream ids to workers. Triggers for the same id that overlap
// collapse into one Process call.
type Queue struct {
	proc        Processor
	jobs        chan int64
	concurrency int
	flight      singleflight.Group
	logger      *slog.Logger
	metrics     *metrics.Collector

	mu     sync.RWMutex
	onDone DoneFunc
}

// New creates a Queue. Call Run to start the workers.
func New(proc Processor, cfg Config, logger *slog.Logger, m *metrics.Collector) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		proc:        proc,
		jobs:        make(chan int64, cfg.QueueSize),
		concurrency: cfg.Concurrency,
		logger:      logger,
		metrics:     m,
	}
}

// OnDone installs the completion hook.
func (q *Queue) OnDone(fn DoneFunc) {
	q.mu.Lock()
	q.onDone = fn
	q.mu.Unlock()
}

// Enqueue schedules a dream without blocking. It reports false when the
// queue is full; the dream stays unprocessed and can be re-triggered.
func (q *Queue) Enqueue(dreamID int64) bool {
	select {
	case q.jobs <- dreamID:
		return true
	default:
		q.metrics.QueueDropped()
		q.logger.Warn("processing queue full, dream not scheduled", slog.Int64("dream_id", dreamID))
		return false
	}
}

// Pending returns the number of queued ids.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Run starts the workers and blocks until ctx is cancelled. A dream being
// processed when ctx ends runs to completion.
func (q *Queue) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		id := i
		g.Go(func() error {
			q.work(gCtx, id)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case dreamID := <-q.jobs:
			q.safeProcess(ctx, worker, dreamID)
		}
	}
}

func (q *Queue) safeProcess(ctx context.Context, worker int, dreamID int64) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("worker recovered from panic",
				slog.Int("worker", worker),
				slog.Int64("dream_id", dreamID),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	_, _ = q.ProcessNow(context.WithoutCancel(ctx), dreamID)
}

// ProcessNow processes a dream synchronously, sharing the single-flight
// guard with the background workers.
func (q *Queue) ProcessNow(ctx context.Context, dreamID int64) (reconcile.Outcome, error) {
	v, err, _ := q.flight.Do(strconv.FormatInt(dreamID, 10), func() (interface{}, error) {
		out, err := q.proc.Process(ctx, dreamID)
		q.mu.RLock()
		fn := q.onDone
		q.mu.RUnlock()
		if fn != nil {
			fn(out, err)
		}
		return out, err
	})
	out, _ := v.(reconcile.Outcome)
	return out, err
}
