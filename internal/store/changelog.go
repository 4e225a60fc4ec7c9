package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/dreamland/internal/models"
)

// ChangeEntry describes a changelog row to append. Snapshots are marshalled to JSON.
type ChangeEntry struct {
	Action     models.ChangeAction
	EntityType string
	EntityID   int64
	Old        any
	New        any
	MergedFrom []int64
	SplitInto  []int64
	UserNote   string
}

// AppendChange inserts an immutable changelog row. Changelog rows are never
// updated or deleted.
func (r repo) AppendChange(ctx context.Context, e ChangeEntry) (*models.ChangeLog, error) {
	oldData, err := marshalNullable(e.Old)
	if err != nil {
		return nil, fmt.Errorf("store: marshal old snapshot: %w", err)
	}
	newData, err := marshalNullable(e.New)
	if err != nil {
		return nil, fmt.Errorf("store: marshal new snapshot: %w", err)
	}
	mergedFrom, _ := marshalIDs(e.MergedFrom)
	splitInto, _ := marshalIDs(e.SplitInto)

	ts := now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO changelog (action, entity_type, entity_id, old_data, new_data, merged_from, split_into, user_note, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.Action), e.EntityType, e.EntityID, oldData, newData, mergedFrom, splitInto, e.UserNote, ts)
	if err != nil {
		return nil, wrapErr("append change", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapErr("append change", err)
	}
	return &models.ChangeLog{
		ID:         id,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldData:    rawOrNil(oldData),
		NewData:    rawOrNil(newData),
		MergedFrom: e.MergedFrom,
		SplitInto:  e.SplitInto,
		UserNote:   e.UserNote,
		Timestamp:  ts,
	}, nil
}

// ListChanges returns changelog rows oldest first. An empty entityType
// returns every row; otherwise rows are filtered by subject.
func (r repo) ListChanges(ctx context.Context, entityType string, entityID int64) ([]models.ChangeLog, error) {
	const cols = `SELECT id, action, entity_type, entity_id, old_data, new_data, merged_from, split_into, user_note, timestamp FROM changelog`
	if entityType == "" {
		return collect(ctx, r.q, "list changes", scanChange, cols+` ORDER BY id`)
	}
	return collect(ctx, r.q, "list changes", scanChange,
		cols+` WHERE entity_type = ? AND entity_id = ? ORDER BY id`, entityType, entityID)
}

func scanChange(s scanner) (*models.ChangeLog, error) {
	var c models.ChangeLog
	var action string
	var oldData, newData, mergedFrom, splitInto sql.NullString
	if err := s.Scan(&c.ID, &action, &c.EntityType, &c.EntityID, &oldData, &newData,
		&mergedFrom, &splitInto, &c.UserNote, &c.Timestamp); err != nil {
		return nil, err
	}
	c.Action = models.ChangeAction(action)
	if oldData.Valid {
		c.OldData = json.RawMessage(oldData.String)
	}
	if newData.Valid {
		c.NewData = json.RawMessage(newData.String)
	}
	if mergedFrom.Valid {
		if err := json.Unmarshal([]byte(mergedFrom.String), &c.MergedFrom); err != nil {
			return nil, fmt.Errorf("decode merged_from: %w", err)
		}
	}
	if splitInto.Valid {
		if err := json.Unmarshal([]byte(splitInto.String), &c.SplitInto); err != nil {
			return nil, fmt.Errorf("decode split_into: %w", err)
		}
	}
	return &c, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func marshalIDs(ids []int64) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	return marshalNullable(ids)
}

func rawOrNil(s sql.NullString) json.RawMessage {
	if !s.Valid {
		return nil
	}
	return json.RawMessage(s.String)
}
