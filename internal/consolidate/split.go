package consolidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/store"
)

// SplitRequest divides one location into Parts. The maps assign dream
// links, owned entities and transits to a part index; every reference left
// unassigned moves to part 0.
type SplitRequest struct {
	SourceID int64                  `json:"source_id"`
	Parts    []models.LocationInput `json:"parts"`
	Dreams   map[int64]int          `json:"dreams,omitempty"`
	Entities map[int64]int          `json:"entities,omitempty"`
	Transits map[int64]int          `json:"transits,omitempty"`
	UserNote string                 `json:"user_note,omitempty"`
}

func (r SplitRequest) validate() error {
	if len(r.Parts) < 2 {
		return apperr.Invalid("split needs at least two parts")
	}
	keys := make(map[string]struct{}, len(r.Parts))
	for i, p := range r.Parts {
		key := models.NameKey(p.Name)
		if key == "" {
			return apperr.Invalid("part %d: name is required", i)
		}
		if _, dup := keys[key]; dup {
			return apperr.Invalid("part %d: duplicate name %q", i, p.Name)
		}
		keys[key] = struct{}{}
		if p.X < -1 || p.X > 1 || p.Y < -1 || p.Y > 1 {
			return apperr.Invalid("part %d: position out of range", i)
		}
		if !p.Layer.Valid() {
			return apperr.Invalid("part %d: invalid layer", i)
		}
	}
	for kind, m := range map[string]map[int64]int{"dream": r.Dreams, "entity": r.Entities, "transit": r.Transits} {
		for id, idx := range m {
			if idx < 0 || idx >= len(r.Parts) {
				return apperr.Invalid("%s %d: part index %d out of range", kind, id, idx)
			}
		}
	}
	return nil
}

// Split replaces the source location with the requested parts. Each part's
// frequency becomes the number of distinct dreams linked to it, at least 1.
func (o *Operator) Split(ctx context.Context, req SplitRequest) ([]models.Location, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var parts []models.Location
	err := o.db.InTx(ctx, func(tx *store.Tx) error {
		src, err := tx.GetLocation(ctx, req.SourceID)
		if err != nil {
			return err
		}
		for _, p := range req.Parts {
			if err := checkNameFree(ctx, tx, strings.TrimSpace(p.Name), []models.Location{*src}); err != nil {
				return err
			}
		}
		if err := tx.ReleaseLocationName(ctx, src.ID); err != nil {
			return err
		}

		parts = make([]models.Location, 0, len(req.Parts))
		for _, p := range req.Parts {
			in := p
			in.Name = strings.TrimSpace(p.Name)
			if in.Archetype == "" {
				in.Archetype = src.Archetype
			}
			if in.Symbol == "" {
				in.Symbol = src.Symbol
			}
			if in.Color == "" {
				in.Color = src.Color
			}
			l, err := tx.CreateLocation(ctx, in, 1)
			if err != nil {
				return err
			}
			parts = append(parts, *l)
		}

		for dreamID, idx := range req.Dreams {
			if err := tx.RepointDreamLinks(ctx, dreamID, src.ID, parts[idx].ID); err != nil {
				return err
			}
		}
		for entityID, idx := range req.Entities {
			if err := tx.RepointEntity(ctx, entityID, src.ID, parts[idx].ID); err != nil {
				return err
			}
		}
		for transitID, idx := range req.Transits {
			if err := tx.RepointTransit(ctx, transitID, src.ID, parts[idx].ID); err != nil {
				return err
			}
		}
		if err := tx.RepointLocation(ctx, src.ID, parts[0].ID); err != nil {
			return err
		}

		ids := make([]int64, len(parts))
		for i := range parts {
			n, err := tx.CountLocationDreams(ctx, parts[i].ID)
			if err != nil {
				return err
			}
			parts[i].Frequency = max(n, 1)
			if err := tx.ApplyObservation(ctx, parts[i].ID, parts[i].X, parts[i].Y, parts[i].Frequency); err != nil {
				return err
			}
			ids[i] = parts[i].ID
		}

		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionSplit,
			EntityType: models.SubjectLocation,
			EntityID:   src.ID,
			Old:        src,
			New:        parts,
			SplitInto:  ids,
			UserNote:   req.UserNote,
		}); err != nil {
			return err
		}
		return tx.DeleteReplacedLocation(ctx, src.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("split location %d: %w", req.SourceID, err)
	}
	return parts, nil
}
