package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/dreamland/internal/models"
)

const entityColumns = `id, name, type, description, symbol, confidence, location_id, created_at`

func scanEntity(s scanner) (*models.Entity, error) {
	var e models.Entity
	var typ string
	var loc sql.NullInt64
	if err := s.Scan(&e.ID, &e.Name, &typ, &e.Description, &e.Symbol, &e.Confidence, &loc, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = models.EntityType(typ)
	if loc.Valid {
		e.LocationID = &loc.Int64
	}
	return &e, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// CreateEntity inserts an entity. A name that collides case-insensitively
// with an existing entity is a conflict.
func (r repo) CreateEntity(ctx context.Context, in models.EntityInput) (*models.Entity, error) {
	ts := now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO entities (name, name_key, type, description, symbol, confidence, location_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Name, models.NameKey(in.Name), string(in.Type), in.Description, in.Symbol,
		in.Confidence, nullableID(in.LocationID), ts)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("create entity %q", in.Name), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapErr("create entity", err)
	}
	return &models.Entity{
		ID:          id,
		Name:        in.Name,
		Type:        in.Type,
		Description: in.Description,
		Symbol:      in.Symbol,
		Confidence:  in.Confidence,
		LocationID:  in.LocationID,
		CreatedAt:   ts,
	}, nil
}

// GetEntity returns the entity with the given id.
func (r repo) GetEntity(ctx context.Context, id int64) (*models.Entity, error) {
	e, err := scanEntity(r.q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get entity %d", id), err)
	}
	return e, nil
}

// GetEntityByName resolves an entity by case-insensitive name.
func (r repo) GetEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	e, err := scanEntity(r.q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name_key = ?`, models.NameKey(name)))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get entity %q", name), err)
	}
	return e, nil
}

// ListEntities returns all entities, optionally restricted to one owning location.
func (r repo) ListEntities(ctx context.Context, locationID *int64) ([]models.Entity, error) {
	if locationID != nil {
		return collect(ctx, r.q, "list entities", scanEntity,
			`SELECT `+entityColumns+` FROM entities WHERE location_id = ? ORDER BY id`, *locationID)
	}
	return collect(ctx, r.q, "list entities", scanEntity,
		`SELECT `+entityColumns+` FROM entities ORDER BY id`)
}

// CountEntities returns the number of entities.
func (r repo) CountEntities(ctx context.Context) (int, error) {
	return r.count(ctx, "count entities", `SELECT count(*) FROM entities`)
}
