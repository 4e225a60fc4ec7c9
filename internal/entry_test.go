package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/dreamland/internal/worldservice"
)

func testComponents(t *testing.T) *Components {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "dreamland.db")
	cfg.Extraction.APIKey = ""
	c, err := Build(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBuild_RequiresConfig(t *testing.T) {
	if _, err := Build(context.Background()); err == nil {
		t.Fatal("Build without config should fail")
	}
}

func TestHandler_HealthAndStatus(t *testing.T) {
	h := testComponents(t).Handler()

	for _, path := range []string{"/health/live", "/health/ready", "/", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestHandler_APIMounted(t *testing.T) {
	h := testComponents(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/stats = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "total_dreams") {
		t.Errorf("stats body = %s", w.Body.String())
	}
}

func TestHandler_CORS(t *testing.T) {
	h := testComponents(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/dreams", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestComponents_FallbackProcessing(t *testing.T) {
	c := testComponents(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	d, err := c.Service.CreateDream(context.Background(), worldservice.DreamInput{
		Date:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Content: "I was lost in a dark forest.",
	})
	if err != nil {
		t.Fatalf("CreateDream: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := c.Service.GetDream(context.Background(), d.ID)
		if err == nil && got.Processed {
			if len(got.LocationIDs) != 1 {
				t.Errorf("location links = %v, want one fallback location", got.LocationIDs)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("dream was not processed")
}
