package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe, want 0", n)
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: DreamCreated, Data: map[string]int64{"id": 4}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: dream.created\n") || !strings.Contains(s, `data: {"id":4}`) {
			t.Errorf("message = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_ThrottlesWorldUpdated(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(DreamProcessed, map[string]int64{"id": 1})
	b.PublishChange(LocationMerged, map[string]int64{"id": 2})

	time.Sleep(50 * time.Millisecond)
	world, changes := 0, 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), WorldUpdated) {
				world++
			} else {
				changes++
			}
		default:
			break loop
		}
	}
	if changes != 2 {
		t.Errorf("change events = %d, want 2", changes)
	}
	if world != 1 {
		t.Errorf("world.updated events = %d, want 1", world)
	}
}

// flushRecorder guards the recorder body, which the handler writes from
// another goroutine.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatal("handler should have subscribed")
	}
	b.Publish(Event{Type: LocationUpdated, Data: map[string]int64{"id": 9}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.body(), "event: location.updated") {
		t.Errorf("body = %q", w.body())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Error("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
	if b.ClientCount() != 0 {
		t.Error("no clients expected after close")
	}
	b.Publish(Event{Type: WorldUpdated})
	b.PublishChange(DreamDeleted, nil)
}
