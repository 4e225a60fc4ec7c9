package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
)

const locationColumns = `id, name, archetype, layer, x, y, symbol, description, color, frequency, created_at, updated_at`

func scanLocation(s scanner) (*models.Location, error) {
	var l models.Location
	var layer int
	if err := s.Scan(&l.ID, &l.Name, &l.Archetype, &layer, &l.X, &l.Y, &l.Symbol,
		&l.Description, &l.Color, &l.Frequency, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Layer = models.Layer(layer)
	return &l, nil
}

// CreateLocation inserts a location with the given starting frequency.
// A name that collides case-insensitively with an existing location is a conflict.
func (r repo) CreateLocation(ctx context.Context, in models.LocationInput, frequency int) (*models.Location, error) {
	if frequency < 1 {
		frequency = 1
	}
	color := in.Color
	if color == "" {
		color = models.DefaultColor
	}
	ts := now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO locations (name, name_key, archetype, layer, x, y, symbol, description, color, frequency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Name, models.NameKey(in.Name), in.Archetype, int(in.Layer), in.X, in.Y, in.Symbol,
		in.Description, color, frequency, ts, ts)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("create location %q", in.Name), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapErr("create location", err)
	}
	return &models.Location{
		ID:          id,
		Name:        in.Name,
		Archetype:   in.Archetype,
		Layer:       in.Layer,
		X:           in.X,
		Y:           in.Y,
		Symbol:      in.Symbol,
		Description: in.Description,
		Color:       color,
		Frequency:   frequency,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// GetLocation returns the location with the given id.
func (r repo) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	l, err := scanLocation(r.q.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get location %d", id), err)
	}
	return l, nil
}

// GetLocationByName resolves a location by case-insensitive name.
func (r repo) GetLocationByName(ctx context.Context, name string) (*models.Location, error) {
	l, err := scanLocation(r.q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE name_key = ?`, models.NameKey(name)))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get location %q", name), err)
	}
	return l, nil
}

// ListLocations returns all locations, optionally restricted to one layer.
func (r repo) ListLocations(ctx context.Context, layer *models.Layer) ([]models.Location, error) {
	if layer != nil {
		return collect(ctx, r.q, "list locations", scanLocation,
			`SELECT `+locationColumns+` FROM locations WHERE layer = ? ORDER BY id`, int(*layer))
	}
	return collect(ctx, r.q, "list locations", scanLocation,
		`SELECT `+locationColumns+` FROM locations ORDER BY id`)
}

// UpdateLocation writes every mutable attribute of l.
func (r repo) UpdateLocation(ctx context.Context, l *models.Location) error {
	l.UpdatedAt = now()
	res, err := r.q.ExecContext(ctx, `
		UPDATE locations SET
			name = ?, name_key = ?, archetype = ?, layer = ?, x = ?, y = ?,
			symbol = ?, description = ?, color = ?, frequency = ?, updated_at = ?
		WHERE id = ?
	`, l.Name, models.NameKey(l.Name), l.Archetype, int(l.Layer), l.X, l.Y,
		l.Symbol, l.Description, l.Color, l.Frequency, l.UpdatedAt, l.ID)
	if err != nil {
		return wrapErr(fmt.Sprintf("update location %d", l.ID), err)
	}
	n, err := affected("update location", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundf("location %d", l.ID)
	}
	return nil
}

// ApplyObservation stores a new running position and frequency for a location.
func (r repo) ApplyObservation(ctx context.Context, id int64, x, y float64, frequency int) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE locations SET x = ?, y = ?, frequency = ?, updated_at = ? WHERE id = ?`,
		x, y, frequency, now(), id)
	return wrapErr(fmt.Sprintf("observe location %d", id), err)
}

// CountLocations returns the number of locations.
func (r repo) CountLocations(ctx context.Context) (int, error) {
	return r.count(ctx, "count locations", `SELECT count(*) FROM locations`)
}

// MostFrequentLocation returns the location with the highest frequency
// (lowest id on ties), or nil when there are none.
func (r repo) MostFrequentLocation(ctx context.Context) (*models.Location, error) {
	l, err := scanLocation(r.q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations ORDER BY frequency DESC, id ASC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("most frequent location", err)
	}
	return l, nil
}

// ReleaseLocationName frees the unique name key of a location that is about
// to be replaced, so its name can be reused within the same transaction.
func (tx *Tx) ReleaseLocationName(ctx context.Context, id int64) error {
	_, err := tx.q.ExecContext(ctx, `UPDATE locations SET name_key = ? WHERE id = ?`,
		fmt.Sprintf("\x00released:%d", id), id)
	return wrapErr(fmt.Sprintf("release location name %d", id), err)
}

// RepointLocation moves every reference to location from onto location to:
// dream links, entity ownership and both transit endpoints.
func (tx *Tx) RepointLocation(ctx context.Context, from, to int64) error {
	for _, stmt := range []string{
		`UPDATE dream_locations SET location_id = ? WHERE location_id = ?`,
		`UPDATE entities SET location_id = ? WHERE location_id = ?`,
		`UPDATE transits SET from_location_id = ? WHERE from_location_id = ?`,
		`UPDATE transits SET to_location_id = ? WHERE to_location_id = ?`,
	} {
		if _, err := tx.q.ExecContext(ctx, stmt, to, from); err != nil {
			return wrapErr(fmt.Sprintf("repoint location %d -> %d", from, to), err)
		}
	}
	return nil
}

// RepointDreamLinks moves the links of one dream from location from onto location to.
func (tx *Tx) RepointDreamLinks(ctx context.Context, dreamID, from, to int64) error {
	_, err := tx.q.ExecContext(ctx,
		`UPDATE dream_locations SET location_id = ? WHERE dream_id = ? AND location_id = ?`, to, dreamID, from)
	return wrapErr("repoint dream links", err)
}

// RepointEntity moves ownership of one entity from location from onto location to.
func (tx *Tx) RepointEntity(ctx context.Context, entityID, from, to int64) error {
	_, err := tx.q.ExecContext(ctx,
		`UPDATE entities SET location_id = ? WHERE id = ? AND location_id = ?`, to, entityID, from)
	return wrapErr("repoint entity", err)
}

// RepointTransit moves whichever endpoints of one transit equal from onto to.
func (tx *Tx) RepointTransit(ctx context.Context, transitID, from, to int64) error {
	for _, stmt := range []string{
		`UPDATE transits SET from_location_id = ? WHERE id = ? AND from_location_id = ?`,
		`UPDATE transits SET to_location_id = ? WHERE id = ? AND to_location_id = ?`,
	} {
		if _, err := tx.q.ExecContext(ctx, stmt, to, transitID, from); err != nil {
			return wrapErr("repoint transit", err)
		}
	}
	return nil
}

// DeleteLocation removes a location after detaching its dependents: dream
// links and touching transits are deleted, owned entities lose their location.
func (tx *Tx) DeleteLocation(ctx context.Context, id int64) error {
	for _, stmt := range []string{
		`DELETE FROM dream_locations WHERE location_id = ?`,
		`UPDATE entities SET location_id = NULL WHERE location_id = ?`,
		`DELETE FROM transits WHERE from_location_id = ?`,
		`DELETE FROM transits WHERE to_location_id = ?`,
	} {
		if _, err := tx.q.ExecContext(ctx, stmt, id); err != nil {
			return wrapErr(fmt.Sprintf("detach location %d", id), err)
		}
	}
	res, err := tx.q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return wrapErr(fmt.Sprintf("delete location %d", id), err)
	}
	n, err := affected("delete location", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundf("location %d", id)
	}
	return nil
}

// DeleteReplacedLocation removes a location whose references have already
// been re-pointed. It fails if any reference remains.
func (tx *Tx) DeleteReplacedLocation(ctx context.Context, id int64) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return wrapErr(fmt.Sprintf("delete replaced location %d", id), err)
	}
	n, err := affected("delete replaced location", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundf("location %d", id)
	}
	return nil
}
