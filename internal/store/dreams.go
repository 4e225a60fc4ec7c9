package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
)

const dreamColumns = `id, date, cycle, content, language, processed, created_at, updated_at`

func scanDream(s scanner) (*models.Dream, error) {
	var d models.Dream
	if err := s.Scan(&d.ID, &d.Date, &d.Cycle, &d.Content, &d.Language, &d.Processed, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDream inserts a new, unprocessed dream.
func (r repo) CreateDream(ctx context.Context, d models.Dream) (*models.Dream, error) {
	ts := now()
	d.Date = d.Date.UTC()
	d.Processed = false
	d.CreatedAt, d.UpdatedAt = ts, ts
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO dreams (date, cycle, content, language, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, d.Date, d.Cycle, d.Content, d.Language, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, wrapErr("create dream", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return nil, wrapErr("create dream", err)
	}
	return &d, nil
}

// GetDream returns the dream with the given id.
func (r repo) GetDream(ctx context.Context, id int64) (*models.Dream, error) {
	d, err := scanDream(r.q.QueryRowContext(ctx, `SELECT `+dreamColumns+` FROM dreams WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get dream %d", id), err)
	}
	return d, nil
}

// ListDreams returns dreams newest-first by date. A non-positive limit
// returns every dream after skip.
func (r repo) ListDreams(ctx context.Context, skip, limit int) ([]models.Dream, error) {
	if limit <= 0 {
		limit = -1
	}
	if skip < 0 {
		skip = 0
	}
	return collect(ctx, r.q, "list dreams", scanDream,
		`SELECT `+dreamColumns+` FROM dreams ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`, limit, skip)
}

// CountDreams returns the number of dreams.
func (r repo) CountDreams(ctx context.Context) (int, error) {
	return r.count(ctx, "count dreams", `SELECT count(*) FROM dreams`)
}

// LatestDream returns the dream with the most recent date, or nil when
// there are no dreams.
func (r repo) LatestDream(ctx context.Context) (*models.Dream, error) {
	d, err := scanDream(r.q.QueryRowContext(ctx, `SELECT `+dreamColumns+` FROM dreams ORDER BY date DESC, id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("latest dream", err)
	}
	return d, nil
}

// ListUnprocessedDreamIDs returns the ids of dreams not yet processed, oldest first.
func (r repo) ListUnprocessedDreamIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM dreams WHERE processed = 0 ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list unprocessed dreams", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("list unprocessed dreams", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("list unprocessed dreams", rows.Err())
}

// MarkDreamProcessed flips processed from false to true. It reports false
// when the dream was already processed or does not exist.
func (r repo) MarkDreamProcessed(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE dreams SET processed = 1, updated_at = ? WHERE id = ? AND processed = 0`, now(), id)
	if err != nil {
		return false, wrapErr("mark dream processed", err)
	}
	n, err := affected("mark dream processed", res)
	return n == 1, err
}

// DeleteDream removes a dream together with the join rows and transits it owns.
// Locations and entities are shared and stay in place.
func (tx *Tx) DeleteDream(ctx context.Context, id int64) error {
	for _, stmt := range []string{
		`DELETE FROM dream_locations WHERE dream_id = ?`,
		`DELETE FROM dream_entities WHERE dream_id = ?`,
		`DELETE FROM transits WHERE dream_id = ?`,
	} {
		if _, err := tx.q.ExecContext(ctx, stmt, id); err != nil {
			return wrapErr("delete dream dependents", err)
		}
	}
	res, err := tx.q.ExecContext(ctx, `DELETE FROM dreams WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete dream", err)
	}
	n, err := affected("delete dream", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundf("dream %d", id)
	}
	return nil
}
