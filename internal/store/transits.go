package store

import (
	"context"
	"fmt"

	"github.com/starford/dreamland/internal/models"
)

const transitColumns = `id, dream_id, from_location_id, to_location_id, trigger, confidence, created_at`

func scanTransit(s scanner) (*models.Transit, error) {
	var t models.Transit
	if err := s.Scan(&t.ID, &t.DreamID, &t.FromLocationID, &t.ToLocationID, &t.Trigger, &t.Confidence, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransit inserts a transit between two resolved locations.
func (r repo) CreateTransit(ctx context.Context, t models.Transit) (*models.Transit, error) {
	t.CreatedAt = now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO transits (dream_id, from_location_id, to_location_id, trigger, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.DreamID, t.FromLocationID, t.ToLocationID, t.Trigger, t.Confidence, t.CreatedAt)
	if err != nil {
		return nil, wrapErr("create transit", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return nil, wrapErr("create transit", err)
	}
	return &t, nil
}

// ListTransits returns every transit.
func (r repo) ListTransits(ctx context.Context) ([]models.Transit, error) {
	return collect(ctx, r.q, "list transits", scanTransit,
		`SELECT `+transitColumns+` FROM transits ORDER BY id`)
}

// ListTransitsForLocation returns transits with either endpoint at the location.
func (r repo) ListTransitsForLocation(ctx context.Context, locationID int64) ([]models.Transit, error) {
	return collect(ctx, r.q, fmt.Sprintf("list transits for location %d", locationID), scanTransit,
		`SELECT `+transitColumns+` FROM transits WHERE from_location_id = ? OR to_location_id = ? ORDER BY id`,
		locationID, locationID)
}

// ListTransitsForDream returns the transits a dream owns.
func (r repo) ListTransitsForDream(ctx context.Context, dreamID int64) ([]models.Transit, error) {
	return collect(ctx, r.q, "list transits for dream", scanTransit,
		`SELECT `+transitColumns+` FROM transits WHERE dream_id = ? ORDER BY id`, dreamID)
}

// CountTransits returns the number of transits.
func (r repo) CountTransits(ctx context.Context) (int, error) {
	return r.count(ctx, "count transits", `SELECT count(*) FROM transits`)
}

// LinkDreamLocation records that a dream visited a location, in order of appearance.
func (r repo) LinkDreamLocation(ctx context.Context, dreamID, locationID int64, order int) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO dream_locations (dream_id, location_id, ord) VALUES (?, ?, ?)`, dreamID, locationID, order)
	return wrapErr("link dream location", err)
}

// LinkDreamEntity records that an entity appeared in a dream.
func (r repo) LinkDreamEntity(ctx context.Context, dreamID, entityID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO dream_entities (dream_id, entity_id) VALUES (?, ?)`, dreamID, entityID)
	return wrapErr("link dream entity", err)
}

func scanDreamLocation(s scanner) (*models.DreamLocation, error) {
	var dl models.DreamLocation
	if err := s.Scan(&dl.ID, &dl.DreamID, &dl.LocationID, &dl.Order); err != nil {
		return nil, err
	}
	return &dl, nil
}

// ListDreamLocations returns a dream's location links in order of appearance.
func (r repo) ListDreamLocations(ctx context.Context, dreamID int64) ([]models.DreamLocation, error) {
	return collect(ctx, r.q, "list dream locations", scanDreamLocation,
		`SELECT id, dream_id, location_id, ord FROM dream_locations WHERE dream_id = ? ORDER BY ord, id`, dreamID)
}

// ListDreamLocationsForLocation returns every dream link pointing at a location.
func (r repo) ListDreamLocationsForLocation(ctx context.Context, locationID int64) ([]models.DreamLocation, error) {
	return collect(ctx, r.q, "list location dreams", scanDreamLocation,
		`SELECT id, dream_id, location_id, ord FROM dream_locations WHERE location_id = ? ORDER BY id`, locationID)
}

// CountLocationDreams returns how many distinct dreams link to a location.
func (r repo) CountLocationDreams(ctx context.Context, locationID int64) (int, error) {
	return r.count(ctx, "count location dreams",
		`SELECT count(DISTINCT dream_id) FROM dream_locations WHERE location_id = ?`, locationID)
}

// ListDreamEntities returns a dream's entity links.
func (r repo) ListDreamEntities(ctx context.Context, dreamID int64) ([]models.DreamEntity, error) {
	return collect(ctx, r.q, "list dream entities", func(s scanner) (*models.DreamEntity, error) {
		var de models.DreamEntity
		if err := s.Scan(&de.ID, &de.DreamID, &de.EntityID); err != nil {
			return nil, err
		}
		return &de, nil
	}, `SELECT id, dream_id, entity_id FROM dream_entities WHERE dream_id = ? ORDER BY id`, dreamID)
}
