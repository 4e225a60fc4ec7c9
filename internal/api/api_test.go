package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/store"
	"github.com/starford/dreamland/internal/testutil"
	"github.com/starford/dreamland/internal/worldservice"
)

type queue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *queue) Enqueue(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

// testEnv sets up a temp SQLite world store, service and router for testing.
func testEnv(t *testing.T) (*store.DB, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	svc := worldservice.New(db, worldservice.WithScheduler(&queue{}))
	return db, NewRouter(svc, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetDream(t *testing.T) {
	_, router := testEnv(t)

	w := do(t, router, http.MethodPost, "/dreams", map[string]any{
		"date": "2024-01-15", "content": "I walked through a forest.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.Dream
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Cycle != 1 || created.Language != "en" || created.Processed {
		t.Errorf("created = %+v", created)
	}

	w = do(t, router, http.MethodGet, "/dreams/"+strconv.FormatInt(created.ID, 10), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail DreamDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Content != "I walked through a forest." {
		t.Errorf("content = %q", detail.Content)
	}
	if detail.LocationIDs == nil || detail.EntityIDs == nil {
		t.Error("link ids should encode as empty arrays")
	}
}

func TestCreateDream_BadInput(t *testing.T) {
	_, router := testEnv(t)

	cases := map[string]any{
		"empty content": map[string]any{"date": "2024-01-15", "content": "   "},
		"bad date":      map[string]any{"date": "yesterday", "content": "x"},
		"bad cycle":     map[string]any{"date": "2024-01-15", "content": "x", "cycle": -1},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if w := do(t, router, http.MethodPost, "/dreams", body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/dreams", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", w.Code)
	}
}

func TestListDreams(t *testing.T) {
	db, router := testEnv(t)
	for _, c := range []string{"one", "two", "three"} {
		testutil.SeedDream(t, db, c)
	}

	w := do(t, router, http.MethodGet, "/dreams?skip=1&limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp DreamListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Dreams) != 1 {
		t.Errorf("page length = %d, want 1", len(resp.Dreams))
	}
}

func TestDeleteDream(t *testing.T) {
	db, router := testEnv(t)
	d := testutil.SeedDream(t, db, "gone soon")
	path := "/dreams/" + strconv.FormatInt(d.ID, 10)

	if w := do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestProcessDream(t *testing.T) {
	db, router := testEnv(t)
	d := testutil.SeedDream(t, db, "again")
	path := "/dreams/" + strconv.FormatInt(d.ID, 10) + "/process"

	if w := do(t, router, http.MethodPost, path, nil); w.Code != http.StatusAccepted {
		t.Fatalf("process status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := db.MarkDreamProcessed(context.Background(), d.ID); err != nil {
		t.Fatal(err)
	}
	if w := do(t, router, http.MethodPost, path, nil); w.Code != http.StatusConflict {
		t.Errorf("process processed dream = %d, want 409", w.Code)
	}
}

func TestInvalidID(t *testing.T) {
	_, router := testEnv(t)
	for _, path := range []string{"/dreams/abc", "/locations/0", "/entities/-3"} {
		if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", path, w.Code)
		}
	}
}

func TestLocationLifecycle(t *testing.T) {
	_, router := testEnv(t)

	w := do(t, router, http.MethodPost, "/locations", map[string]any{
		"name": "Old House", "archetype": "home", "layer": "PRIMARY", "x": 0.2, "y": -0.4,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var loc models.Location
	_ = json.Unmarshal(w.Body.Bytes(), &loc)
	path := "/locations/" + strconv.FormatInt(loc.ID, 10)

	if w := do(t, router, http.MethodPost, "/locations", map[string]any{"name": "old house"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate name = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPatch, path, map[string]any{"description": "creaky stairs"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated models.Location
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Description != "creaky stairs" || updated.Name != "Old House" {
		t.Errorf("updated = %+v", updated)
	}

	if w := do(t, router, http.MethodPatch, path, map[string]any{"x": 3.0}); w.Code != http.StatusBadRequest {
		t.Errorf("out of range patch = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, path+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var history []models.ChangeLog
	_ = json.Unmarshal(w.Body.Bytes(), &history)
	if len(history) != 2 || history[0].Action != models.ActionCreate || history[1].Action != models.ActionUpdate {
		t.Errorf("history = %+v", history)
	}

	if w := do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListLocations_LayerFilter(t *testing.T) {
	_, router := testEnv(t)
	do(t, router, http.MethodPost, "/locations", map[string]any{"name": "Cellar", "layer": "LOWER"})
	do(t, router, http.MethodPost, "/locations", map[string]any{"name": "Street", "layer": "PRIMARY"})

	w := do(t, router, http.MethodGet, "/locations?layer=LOWER", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var locs []models.Location
	_ = json.Unmarshal(w.Body.Bytes(), &locs)
	if len(locs) != 1 || locs[0].Name != "Cellar" {
		t.Errorf("locations = %+v", locs)
	}

	if w := do(t, router, http.MethodGet, "/locations?layer=SIDEWAYS", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown layer = %d, want 400", w.Code)
	}
}

func TestMergeAndSplit(t *testing.T) {
	db, router := testEnv(t)
	a := testutil.SeedLocation(t, db, "Beach", 0.1, 0.1, 2)
	b := testutil.SeedLocation(t, db, "Shore", 0.3, 0.3, 3)

	w := do(t, router, http.MethodPost, "/locations/merge", map[string]any{
		"source_ids": []int64{a.ID, b.ID}, "target_name": "Coast",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("merge status = %d, body = %s", w.Code, w.Body.String())
	}
	var merged models.Location
	_ = json.Unmarshal(w.Body.Bytes(), &merged)
	if merged.Name != "Coast" || merged.Frequency != 5 {
		t.Errorf("merged = %+v", merged)
	}

	w = do(t, router, http.MethodPost, "/locations/"+strconv.FormatInt(merged.ID, 10)+"/split", map[string]any{
		"parts": []map[string]any{{"name": "North Coast"}, {"name": "South Coast"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("split status = %d, body = %s", w.Code, w.Body.String())
	}
	var split SplitResponse
	_ = json.Unmarshal(w.Body.Bytes(), &split)
	if len(split.Locations) != 2 {
		t.Errorf("split produced %d locations", len(split.Locations))
	}

	if w := do(t, router, http.MethodPost, "/locations/merge", map[string]any{
		"source_ids": []int64{999}, "target_name": "Nowhere",
	}); w.Code != http.StatusBadRequest {
		t.Errorf("merge of unknown ids = %d, want 400", w.Code)
	}
}

func TestEntities(t *testing.T) {
	db, router := testEnv(t)
	loc := testutil.SeedLocation(t, db, "Garden", 0, 0, 1)

	w := do(t, router, http.MethodPost, "/entities", map[string]any{
		"name": "Grandmother", "type": "Person", "location_id": loc.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var ent models.Entity
	_ = json.Unmarshal(w.Body.Bytes(), &ent)
	if ent.Type != models.EntityType("person") || ent.Confidence != 1 {
		t.Errorf("entity = %+v", ent)
	}

	if w := do(t, router, http.MethodGet, "/entities/"+strconv.FormatInt(ent.ID, 10), nil); w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/entities?location_id="+strconv.FormatInt(loc.ID, 10), nil)
	var ents []models.Entity
	_ = json.Unmarshal(w.Body.Bytes(), &ents)
	if len(ents) != 1 {
		t.Errorf("entities at location = %d, want 1", len(ents))
	}

	if w := do(t, router, http.MethodPost, "/entities", map[string]any{
		"name": "Ghost", "location_id": 4242,
	}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown location = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/entities?location_id=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad location_id = %d, want 400", w.Code)
	}
}

func TestStatsAndExport(t *testing.T) {
	db, router := testEnv(t)
	testutil.SeedDream(t, db, "a dream")
	testutil.SeedLocation(t, db, "Station", 0, 0, 4)

	w := do(t, router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats models.WorldStats
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalDreams != 1 || stats.TotalLocations != 1 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	var exp models.WorldExport
	_ = json.Unmarshal(w.Body.Bytes(), &exp)
	if exp.ExportID == "" || len(exp.Dreams) != 1 || len(exp.Locations) != 1 {
		t.Errorf("export = %+v", exp)
	}
}

func TestEventsRoute(t *testing.T) {
	db := testutil.TestDB(t)
	broker := sse.NewBroker(0)
	t.Cleanup(broker.Close)
	router := NewRouter(worldservice.New(db), broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	cancel()
	<-done
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
