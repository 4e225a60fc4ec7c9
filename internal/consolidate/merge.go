// Package consolidate implements user-driven location merges and splits.
// Every operation runs in one store transaction and re-points all references
// before the replaced locations are removed.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/store"
)

// Operator merges and splits locations.
type Operator struct {
	db *store.DB
}

// New creates an Operator over db.
func New(db *store.DB) *Operator {
	return &Operator{db: db}
}

// MergeRequest names the locations to fold into one new location.
// The first resolvable source supplies archetype, layer, symbol and color.
type MergeRequest struct {
	SourceIDs  []int64 `json:"source_ids"`
	TargetName string  `json:"target_name"`
	UserNote   string  `json:"user_note,omitempty"`
}

// Merge replaces the resolvable sources with one location whose position is
// the unweighted mean of the sources and whose frequency is their sum.
// Unknown ids are ignored; if none resolve the call fails with invalid input
// and nothing changes.
func (o *Operator) Merge(ctx context.Context, req MergeRequest) (*models.Location, error) {
	ids := distinct(req.SourceIDs)
	if len(ids) < 2 {
		return nil, apperr.Invalid("merge needs at least two distinct source ids")
	}
	name := strings.TrimSpace(req.TargetName)
	if name == "" {
		return nil, apperr.Invalid("target name is required")
	}

	var merged *models.Location
	err := o.db.InTx(ctx, func(tx *store.Tx) error {
		sources, err := resolve(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return apperr.Invalid("none of the source locations %v exist", ids)
		}
		if err := checkNameFree(ctx, tx, name, sources); err != nil {
			return err
		}

		var sumX, sumY float64
		freq := 0
		names := make([]string, 0, len(sources))
		resolvedIDs := make([]int64, 0, len(sources))
		for _, s := range sources {
			sumX += s.X
			sumY += s.Y
			freq += s.Frequency
			names = append(names, s.Name)
			resolvedIDs = append(resolvedIDs, s.ID)
			if err := tx.ReleaseLocationName(ctx, s.ID); err != nil {
				return err
			}
		}
		first := sources[0]
		n := float64(len(sources))
		merged, err = tx.CreateLocation(ctx, models.LocationInput{
			Name:        name,
			Archetype:   first.Archetype,
			Layer:       first.Layer,
			X:           models.ClampUnit(sumX / n),
			Y:           models.ClampUnit(sumY / n),
			Symbol:      first.Symbol,
			Description: "Merged from: " + strings.Join(names, ", "),
			Color:       first.Color,
		}, freq)
		if err != nil {
			return err
		}

		for _, s := range sources {
			if err := tx.RepointLocation(ctx, s.ID, merged.ID); err != nil {
				return err
			}
		}
		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionMerge,
			EntityType: models.SubjectLocation,
			EntityID:   merged.ID,
			Old:        sources,
			New:        merged,
			MergedFrom: resolvedIDs,
			UserNote:   req.UserNote,
		}); err != nil {
			return err
		}
		for _, s := range sources {
			if err := tx.DeleteReplacedLocation(ctx, s.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merge locations: %w", err)
	}
	return merged, nil
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolve loads the ids that exist, keeping input order.
func resolve(ctx context.Context, tx *store.Tx, ids []int64) ([]models.Location, error) {
	out := make([]models.Location, 0, len(ids))
	for _, id := range ids {
		l, err := tx.GetLocation(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, nil
}

// checkNameFree fails with a conflict when name belongs to a location that
// is not being replaced.
func checkNameFree(ctx context.Context, tx *store.Tx, name string, replaced []models.Location) error {
	existing, err := tx.GetLocationByName(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, r := range replaced {
		if r.ID == existing.ID {
			return nil
		}
	}
	return apperr.Conflictf("location %q already exists (id %d)", existing.Name, existing.ID)
}
