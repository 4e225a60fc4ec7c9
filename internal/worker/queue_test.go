package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/dreamland/internal/reconcile"
	"github.com/starford/dreamland/internal/testutil"
)

type fakeProcessor struct {
	mu      sync.Mutex
	calls   map[int64]int
	release chan struct{}
	err     error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{calls: map[int64]int{}}
}

func (f *fakeProcessor) Process(ctx context.Context, id int64) (reconcile.Outcome, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.calls[id]++
	f.mu.Unlock()
	return reconcile.Outcome{DreamID: id}, f.err
}

func (f *fakeProcessor) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestQueue_ProcessesEnqueued(t *testing.T) {
	proc := newFakeProcessor()
	q := New(proc, Config{Concurrency: 2, QueueSize: 8}, quiet(), nil)

	var done atomic.Int32
	q.OnDone(func(reconcile.Outcome, error) { done.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	for id := int64(1); id <= 5; id++ {
		if !q.Enqueue(id) {
			t.Fatalf("Enqueue(%d) dropped", id)
		}
	}
	testutil.Eventually(t, 2*time.Second, func() bool { return done.Load() == 5 })
	for id := int64(1); id <= 5; id++ {
		if proc.count(id) != 1 {
			t.Errorf("dream %d processed %d times", id, proc.count(id))
		}
	}
}

func TestQueue_EnqueueNeverBlocks(t *testing.T) {
	q := New(newFakeProcessor(), Config{Concurrency: 1, QueueSize: 1}, quiet(), nil)
	if !q.Enqueue(1) {
		t.Fatal("first enqueue should fit")
	}
	if q.Enqueue(2) {
		t.Fatal("second enqueue should be dropped without a running worker")
	}
	if q.Pending() != 1 {
		t.Errorf("pending = %d, want 1", q.Pending())
	}
}

func TestQueue_DuplicateTriggersCollapse(t *testing.T) {
	proc := newFakeProcessor()
	proc.release = make(chan struct{})
	q := New(proc, Config{Concurrency: 1, QueueSize: 1}, quiet(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.ProcessNow(context.Background(), 7)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(proc.release)
	wg.Wait()

	if n := proc.count(7); n != 1 {
		t.Errorf("Process called %d times, want 1", n)
	}
}

func TestQueue_ReportsErrors(t *testing.T) {
	proc := newFakeProcessor()
	proc.err = errors.New("store down")
	q := New(proc, Config{Concurrency: 1, QueueSize: 1}, quiet(), nil)

	var got error
	q.OnDone(func(_ reconcile.Outcome, err error) { got = err })
	if _, err := q.ProcessNow(context.Background(), 3); err == nil {
		t.Fatal("expected error")
	}
	if got == nil {
		t.Error("OnDone should receive the error")
	}
}

func TestQueue_RunStopsOnCancel(t *testing.T) {
	q := New(newFakeProcessor(), Config{Concurrency: 3, QueueSize: 1}, quiet(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
