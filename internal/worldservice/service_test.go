package worldservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/consolidate"
	"github.com/starford/dreamland/internal/journal"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/testutil"
)

type fakeScheduler struct {
	mu     sync.Mutex
	ids    []int64
	refuse bool
}

func (f *fakeScheduler) Enqueue(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse {
		return false
	}
	f.ids = append(f.ids, id)
	return true
}

type recorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorder) PublishChange(kind string, _ any) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func (r *recorder) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func newService(t *testing.T) (*Service, *fakeScheduler, *recorder) {
	t.Helper()
	sched, rec := &fakeScheduler{}, &recorder{}
	return New(testutil.TestDB(t), WithScheduler(sched), WithPublisher(rec)), sched, rec
}

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestCreateDream_DefaultsAndScheduling(t *testing.T) {
	svc, sched, rec := newService(t)
	d, err := svc.CreateDream(context.Background(), DreamInput{Date: day, Content: "  I was at home.  "})
	if err != nil {
		t.Fatalf("CreateDream: %v", err)
	}
	if d.Cycle != 1 || d.Language != "en" || d.Content != "I was at home." || d.Processed {
		t.Errorf("dream = %+v", d)
	}
	if len(sched.ids) != 1 || sched.ids[0] != d.ID {
		t.Errorf("scheduled = %v", sched.ids)
	}
	if !rec.has(sse.DreamCreated) {
		t.Errorf("events = %v", rec.kinds)
	}
}

func TestCreateDream_Validation(t *testing.T) {
	svc, sched, _ := newService(t)
	ctx := context.Background()
	for name, in := range map[string]DreamInput{
		"no date":       {Content: "x"},
		"blank content": {Date: day, Content: "   "},
		"bad cycle":     {Date: day, Cycle: -1, Content: "x"},
		"long language": {Date: day, Content: "x", Language: "english"},
	} {
		if _, err := svc.CreateDream(ctx, in); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want invalid input", name, err)
		}
	}
	if len(sched.ids) != 0 {
		t.Errorf("invalid dreams were scheduled: %v", sched.ids)
	}
}

func TestProcessDream(t *testing.T) {
	svc, sched, _ := newService(t)
	ctx := context.Background()
	d, _ := svc.CreateDream(ctx, DreamInput{Date: day, Content: "forest"})

	if _, err := svc.ProcessDream(ctx, d.ID); err != nil {
		t.Fatalf("ProcessDream: %v", err)
	}
	if len(sched.ids) != 2 {
		t.Errorf("scheduled = %v, want two triggers", sched.ids)
	}
	if _, err := svc.ProcessDream(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing dream err = %v", err)
	}

	sched.refuse = true
	if _, err := svc.ProcessDream(ctx, d.ID); !errors.Is(err, apperr.ErrExternalUnavailable) {
		t.Errorf("full queue err = %v", err)
	}

	if _, err := svc.db.MarkDreamProcessed(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessDream(ctx, d.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("processed dream err = %v", err)
	}
}

func TestGetDream_Links(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	d, _ := svc.CreateDream(ctx, DreamInput{Date: day, Content: "house"})
	l := testutil.SeedLocation(t, svc.db, "House", 0, 0, 1)
	e, _ := svc.db.CreateEntity(ctx, models.EntityInput{Name: "Cat", Type: models.EntityAnimal, Confidence: 1})
	_ = svc.db.LinkDreamLocation(ctx, d.ID, l.ID, 1)
	_ = svc.db.LinkDreamEntity(ctx, d.ID, e.ID)

	got, err := svc.GetDream(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.LocationIDs) != 1 || got.LocationIDs[0] != l.ID || len(got.EntityIDs) != 1 || got.EntityIDs[0] != e.ID {
		t.Errorf("detail = %+v", got)
	}
}

func TestListDreams_Limits(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = svc.CreateDream(ctx, DreamInput{Date: day.AddDate(0, 0, i), Content: "dream"})
	}
	dreams, total, err := svc.ListDreams(ctx, 0, 0)
	if err != nil || len(dreams) != 3 || total != 3 {
		t.Fatalf("ListDreams = %d dreams, total %d, %v", len(dreams), total, err)
	}
	if !dreams[0].Date.After(dreams[2].Date) {
		t.Error("dreams should be newest first")
	}
	dreams, _, _ = svc.ListDreams(ctx, 1, 1)
	if len(dreams) != 1 {
		t.Errorf("page = %d dreams", len(dreams))
	}
}

func TestDeleteDream(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	d, _ := svc.CreateDream(ctx, DreamInput{Date: day, Content: "x"})
	if err := svc.DeleteDream(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteDream(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if !rec.has(sse.DreamDeleted) {
		t.Error("missing dream.deleted event")
	}
}

func TestLocationLifecycle(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, models.LocationInput{Name: " Cave ", Archetype: "cave", Layer: models.LayerLower, X: -0.5})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if loc.Name != "Cave" || loc.Color != "#78716c" || loc.Frequency != 1 {
		t.Errorf("location = %+v", loc)
	}
	if _, err := svc.CreateLocation(ctx, models.LocationInput{Name: "cave"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate err = %v", err)
	}

	name, y := "Deep Cave", 0.25
	updated, err := svc.UpdateLocation(ctx, loc.ID, LocationPatch{Name: &name, Y: &y, UserNote: "renamed"})
	if err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if updated.Name != "Deep Cave" || updated.Y != 0.25 || updated.X != -0.5 || updated.Frequency != 1 {
		t.Errorf("updated = %+v", updated)
	}

	history, err := svc.LocationHistory(ctx, loc.ID)
	if err != nil || len(history) != 2 || history[0].Action != models.ActionCreate || history[1].Action != models.ActionUpdate {
		t.Fatalf("history = %+v, %v", history, err)
	}
	if history[1].UserNote != "renamed" {
		t.Errorf("user note = %q", history[1].UserNote)
	}

	if err := svc.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetLocation(ctx, loc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	history, _ = svc.LocationHistory(ctx, loc.ID)
	if len(history) != 3 || history[2].Action != models.ActionDelete {
		t.Errorf("history after delete = %+v", history)
	}
	if _, err := svc.LocationHistory(ctx, 4242); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("history of unknown location err = %v", err)
	}
	for _, k := range []string{sse.LocationCreated, sse.LocationUpdated, sse.LocationDeleted} {
		if !rec.has(k) {
			t.Errorf("missing %s event", k)
		}
	}
}

func TestUpdateLocation_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	loc := testutil.SeedLocation(t, svc.db, "Tower", 0, 0, 1)

	x, color, empty, layer, blank := 1.5, "blue", "", models.Layer(4), " "
	for name, p := range map[string]LocationPatch{
		"x":           {X: &x},
		"color":       {Color: &color},
		"empty color": {Color: &empty},
		"layer":       {Layer: &layer},
		"name":        {Name: &blank},
	} {
		if _, err := svc.UpdateLocation(ctx, loc.ID, p); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want invalid input", name, err)
		}
	}
	got, _ := svc.GetLocation(ctx, loc.ID)
	if got.X != 0 || got.Name != "Tower" || got.Color != loc.Color {
		t.Errorf("location changed by rejected patch: %+v", got)
	}
	if _, err := svc.UpdateLocation(ctx, 999, LocationPatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing location err = %v", err)
	}
}

func TestLocationTransits(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a := testutil.SeedLocation(t, svc.db, "A", 0, 0, 1)
	b := testutil.SeedLocation(t, svc.db, "B", 0, 0, 1)
	d := testutil.SeedDream(t, svc.db, "a to b")
	_, _ = svc.db.CreateTransit(ctx, models.Transit{DreamID: d.ID, FromLocationID: a.ID, ToLocationID: b.ID, Confidence: 1})

	ts, err := svc.LocationTransits(ctx, b.ID)
	if err != nil || len(ts) != 1 {
		t.Fatalf("transits = %+v, %v", ts, err)
	}
	if _, err := svc.LocationTransits(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestEntities(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	loc := testutil.SeedLocation(t, svc.db, "Forest", 0.5, 0.3, 1)

	e, err := svc.CreateEntity(ctx, models.EntityInput{Name: "Owl", Confidence: 0.8, LocationID: &loc.ID})
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if e.Type != models.EntityAbstract {
		t.Errorf("type = %q, want abstract default", e.Type)
	}
	missing := int64(999)
	if _, err := svc.CreateEntity(ctx, models.EntityInput{Name: "Ghost", LocationID: &missing}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown location err = %v", err)
	}
	if _, err := svc.CreateEntity(ctx, models.EntityInput{Name: "Rock", Type: "mineral"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad type err = %v", err)
	}
	if _, err := svc.CreateEntity(ctx, models.EntityInput{Name: "Star", Confidence: 2}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad confidence err = %v", err)
	}

	owned, _ := svc.ListEntities(ctx, &loc.ID)
	if len(owned) != 1 || owned[0].ID != e.ID {
		t.Errorf("owned = %+v", owned)
	}
	got, err := svc.GetEntity(ctx, e.ID)
	if err != nil || got.Name != "Owl" {
		t.Errorf("GetEntity = %+v, %v", got, err)
	}
}

func TestMergeAndSplitEvents(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	a := testutil.SeedLocation(t, svc.db, "Hall", 0, 0, 1)
	b := testutil.SeedLocation(t, svc.db, "Hallway", 0.2, 0, 1)

	merged, err := svc.MergeLocations(ctx, consolidate.MergeRequest{SourceIDs: []int64{a.ID, b.ID}, TargetName: "Corridor"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	parts, err := svc.SplitLocation(ctx, consolidate.SplitRequest{
		SourceID: merged.ID,
		Parts:    []models.LocationInput{{Name: "North Hall"}, {Name: "South Hall", Y: -0.5}},
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(parts) != 2 {
		t.Errorf("parts = %+v", parts)
	}
	if _, err := svc.SplitLocation(ctx, consolidate.SplitRequest{
		SourceID: parts[0].ID,
		Parts:    []models.LocationInput{{Name: "X", Color: "red"}, {Name: "Y"}},
	}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad color err = %v", err)
	}
	if !rec.has(sse.LocationMerged) || !rec.has(sse.LocationSplit) {
		t.Errorf("events = %v", rec.kinds)
	}
}

func TestExport(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateDream(ctx, DreamInput{Date: day, Content: "x"})
	testutil.SeedLocation(t, svc.db, "Home", 0, 0, 1)

	out, err := svc.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ExportID) != 36 || out.ExportDate.IsZero() {
		t.Errorf("export header = %q %v", out.ExportID, out.ExportDate)
	}
	if len(out.Dreams) != 1 || len(out.Locations) != 1 || out.Entities == nil || out.Transits == nil {
		t.Errorf("export = %+v", out)
	}
}

func TestImportJournal_DedupByContent(t *testing.T) {
	svc, sched, _ := newService(t)
	ctx := context.Background()
	file := journal.Format(journal.Entry{Date: day, Cycle: 2, Language: "de", Content: "Im Wald."})

	d, created, err := svc.ImportJournal(ctx, "a.md", file, time.Now())
	if err != nil || !created {
		t.Fatalf("first import = %v, %v", created, err)
	}
	if d.Cycle != 2 || d.Language != "de" || !d.Date.Equal(day) {
		t.Errorf("dream = %+v", d)
	}

	crlf := []byte("\r\n" + string(file) + "\r\n")
	if _, created, err := svc.ImportJournal(ctx, "renamed.md", crlf, time.Now()); err != nil || created {
		t.Errorf("re-import = %v, %v; want skipped", created, err)
	}
	if _, created, err := svc.ImportJournal(ctx, "empty.md", []byte("\n\n"), time.Now()); err != nil || created {
		t.Errorf("empty import = %v, %v; want skipped", created, err)
	}
	if len(sched.ids) != 1 {
		t.Errorf("scheduled = %v", sched.ids)
	}
}
