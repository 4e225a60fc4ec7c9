// Package reconcile merges one dream's extracted candidates into the world
// model: locations and entities are matched by case-insensitive name, new
// ones are created, and revisited locations drift toward the new observation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/extraction"
	"github.com/starford/dreamland/internal/metrics"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/store"
)

// Extractor produces candidates for a dream. *extraction.Adapter satisfies it.
type Extractor interface {
	Extract(ctx context.Context, text, language string) extraction.Outcome
}

// Engine reconciles dreams against the world store.
type Engine struct {
	db        *store.DB
	extractor Extractor
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// New creates an Engine.
func New(db *store.DB, extractor Extractor, logger *slog.Logger, m *metrics.Collector) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, extractor: extractor, logger: logger, metrics: m}
}

// Outcome summarises one reconciliation attempt.
type Outcome struct {
	DreamID          int64             `json:"dream_id"`
	Skipped          bool              `json:"skipped"`
	Source           extraction.Source `json:"source,omitempty"`
	Reason           extraction.Reason `json:"reason,omitempty"`
	LocationsCreated int               `json:"locations_created"`
	LocationsMerged  int               `json:"locations_merged"`
	EntitiesCreated  int               `json:"entities_created"`
	EntitiesLinked   int               `json:"entities_linked"`
	TransitsCreated  int               `json:"transits_created"`
	TransitsSkipped  int               `json:"transits_skipped"`
	LocationIDs      []int64           `json:"location_ids"`
}

// observation is the changelog snapshot of a location's running statistics.
type observation struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Frequency int     `json:"frequency"`
}

var errProcessedConcurrently = errors.New("dream processed concurrently")

// Process extracts and reconciles one dream. A missing or already processed
// dream is skipped without error. Any failure rolls back every change of the
// attempt and leaves the dream unprocessed.
func (e *Engine) Process(ctx context.Context, dreamID int64) (Outcome, error) {
	out := Outcome{DreamID: dreamID}

	dream, err := e.db.GetDream(ctx, dreamID)
	if errors.Is(err, apperr.ErrNotFound) {
		out.Skipped = true
		e.metrics.DreamProcessed(metrics.ResultSkipped)
		return out, nil
	}
	if err != nil {
		e.metrics.DreamProcessed(metrics.ResultFailed)
		return out, err
	}
	if dream.Processed {
		out.Skipped = true
		e.metrics.DreamProcessed(metrics.ResultSkipped)
		return out, nil
	}

	logger := e.logger.With(slog.String("attempt_id", uuid.NewString()))
	ext := e.extractor.Extract(ctx, dream.Content, dream.Language)

	start := time.Now()
	err = e.db.InTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetDream(ctx, dreamID)
		if err != nil {
			return err
		}
		if cur.Processed {
			return errProcessedConcurrently
		}
		applied, err := Apply(ctx, tx, cur, ext.Result)
		if err != nil {
			return err
		}
		out = applied
		return nil
	})
	e.metrics.ObserveReconcile(time.Since(start))
	out.DreamID = dreamID
	out.Source, out.Reason = ext.Source, ext.Reason

	switch {
	case errors.Is(err, errProcessedConcurrently), errors.Is(err, apperr.ErrNotFound):
		e.metrics.DreamProcessed(metrics.ResultSkipped)
		return Outcome{DreamID: dreamID, Skipped: true, Source: ext.Source, Reason: ext.Reason}, nil
	case err != nil:
		e.metrics.DreamProcessed(metrics.ResultFailed)
		logger.Error("dream reconciliation failed",
			slog.Int64("dream_id", dreamID),
			slog.String("error", err.Error()))
		return Outcome{DreamID: dreamID, Source: ext.Source, Reason: ext.Reason}, fmt.Errorf("reconcile dream %d: %w", dreamID, err)
	}

	e.metrics.DreamProcessed(metrics.ResultProcessed)
	logger.Info("dream reconciled",
		slog.Int64("dream_id", dreamID),
		slog.String("source", string(out.Source)),
		slog.Int("locations_created", out.LocationsCreated),
		slog.Int("locations_merged", out.LocationsMerged),
		slog.Int("entities_created", out.EntitiesCreated),
		slog.Int("transits_created", out.TransitsCreated),
		slog.Int("transits_skipped", out.TransitsSkipped))
	return out, nil
}

// Apply writes res into the store through tx and marks dream processed.
// Candidates are resolved in order; a name repeated within the same dream is
// linked and observed once.
func Apply(ctx context.Context, tx *store.Tx, dream *models.Dream, res extraction.Result) (Outcome, error) {
	out := Outcome{DreamID: dream.ID, LocationIDs: []int64{}}
	resolved := make(map[string]int64, len(res.Locations))

	for _, c := range res.Locations {
		key := models.NameKey(c.Name)
		if key == "" {
			continue
		}
		// Frequency counts dreams, so a repeat within one dream is not a new appearance.
		if _, seen := resolved[key]; seen {
			continue
		}
		id, created, err := resolveLocation(ctx, tx, c)
		if err != nil {
			return out, err
		}
		if created {
			out.LocationsCreated++
		} else {
			out.LocationsMerged++
		}
		resolved[key] = id
		out.LocationIDs = append(out.LocationIDs, id)
		if err := tx.LinkDreamLocation(ctx, dream.ID, id, len(out.LocationIDs)); err != nil {
			return out, err
		}
	}

	linked := make(map[string]struct{}, len(res.Entities))
	for _, c := range res.Entities {
		key := models.NameKey(c.Name)
		if key == "" {
			continue
		}
		if _, seen := linked[key]; seen {
			continue
		}
		linked[key] = struct{}{}

		id, created, err := resolveEntity(ctx, tx, c, resolved)
		if err != nil {
			return out, err
		}
		if created {
			out.EntitiesCreated++
		}
		out.EntitiesLinked++
		if err := tx.LinkDreamEntity(ctx, dream.ID, id); err != nil {
			return out, err
		}
	}

	for _, c := range res.Transits {
		from, okFrom := resolved[models.NameKey(c.From)]
		to, okTo := resolved[models.NameKey(c.To)]
		if !okFrom || !okTo {
			out.TransitsSkipped++
			continue
		}
		if _, err := tx.CreateTransit(ctx, models.Transit{
			DreamID:        dream.ID,
			FromLocationID: from,
			ToLocationID:   to,
			Trigger:        c.Trigger,
			Confidence:     models.ClampConfidence(c.Confidence),
		}); err != nil {
			return out, err
		}
		out.TransitsCreated++
	}

	changed, err := tx.MarkDreamProcessed(ctx, dream.ID)
	if err != nil {
		return out, err
	}
	if !changed {
		return out, errProcessedConcurrently
	}
	return out, nil
}

// resolveLocation creates the candidate or folds it into the existing
// location with the running weighted average w = f/(f+1).
func resolveLocation(ctx context.Context, tx *store.Tx, c extraction.LocationCandidate) (int64, bool, error) {
	existing, err := tx.GetLocationByName(ctx, c.Name)
	if errors.Is(err, apperr.ErrNotFound) {
		in := c
		in.Name = strings.TrimSpace(c.Name)
		in.X, in.Y = models.ClampUnit(c.X), models.ClampUnit(c.Y)
		if !in.Layer.Valid() {
			in.Layer = models.LayerPrimary
		}
		if in.Color == "" {
			in.Color = extraction.ColorFor(in.Archetype)
		}
		loc, err := tx.CreateLocation(ctx, in, 1)
		if err != nil {
			return 0, false, err
		}
		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionCreate,
			EntityType: models.SubjectLocation,
			EntityID:   loc.ID,
			New:        loc,
		}); err != nil {
			return 0, false, err
		}
		return loc.ID, true, nil
	}
	if err != nil {
		return 0, false, err
	}

	before := observation{X: existing.X, Y: existing.Y, Frequency: existing.Frequency}
	w := float64(existing.Frequency) / float64(existing.Frequency+1)
	after := observation{
		X:         models.ClampUnit(existing.X*w + models.ClampUnit(c.X)*(1-w)),
		Y:         models.ClampUnit(existing.Y*w + models.ClampUnit(c.Y)*(1-w)),
		Frequency: existing.Frequency + 1,
	}
	if err := tx.ApplyObservation(ctx, existing.ID, after.X, after.Y, after.Frequency); err != nil {
		return 0, false, err
	}
	if _, err := tx.AppendChange(ctx, store.ChangeEntry{
		Action:     models.ActionUpdate,
		EntityType: models.SubjectLocation,
		EntityID:   existing.ID,
		Old:        before,
		New:        after,
	}); err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

// resolveEntity reuses an existing entity untouched or creates the candidate.
func resolveEntity(ctx context.Context, tx *store.Tx, c extraction.EntityCandidate, locations map[string]int64) (int64, bool, error) {
	existing, err := tx.GetEntityByName(ctx, c.Name)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return 0, false, err
	}

	in := c.EntityInput
	in.Name = strings.TrimSpace(c.Name)
	in.Type = models.ParseEntityType(string(c.Type))
	in.Confidence = models.ClampConfidence(c.Confidence)
	in.LocationID = nil
	if c.Location != "" {
		if id, ok := locations[models.NameKey(c.Location)]; ok {
			in.LocationID = &id
		}
	}
	ent, err := tx.CreateEntity(ctx, in)
	if err != nil {
		return 0, false, err
	}
	if _, err := tx.AppendChange(ctx, store.ChangeEntry{
		Action:     models.ActionCreate,
		EntityType: models.SubjectEntity,
		EntityID:   ent.ID,
		New:        ent,
	}); err != nil {
		return 0, false, err
	}
	return ent.ID, true, nil
}
