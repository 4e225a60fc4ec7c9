package worldservice

import (
	"context"
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/consolidate"
	"github.com/starford/dreamland/internal/extraction"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/store"
)

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var validLayer = validation.By(func(v any) error {
	if l, ok := v.(models.Layer); ok && !l.Valid() {
		return errors.New("must be LOWER, PRIMARY or UPPER")
	}
	return nil
})

func validateLocation(in *models.LocationInput) error {
	in.Name = strings.TrimSpace(in.Name)
	return apperr.Validation(validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.X, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&in.Y, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&in.Color, validation.Match(colorRe)),
		validation.Field(&in.Layer, validLayer),
	))
}

// LocationPatch carries the attributes to change; nil fields are left alone.
// Frequency is derived from observations and cannot be patched.
type LocationPatch struct {
	Name        *string       `json:"name,omitempty"`
	Archetype   *string       `json:"archetype,omitempty"`
	Layer       *models.Layer `json:"layer,omitempty"`
	X           *float64      `json:"x,omitempty"`
	Y           *float64      `json:"y,omitempty"`
	Symbol      *string       `json:"symbol,omitempty"`
	Description *string       `json:"description,omitempty"`
	Color       *string       `json:"color,omitempty"`
	UserNote    string        `json:"user_note,omitempty"`
}

func (p LocationPatch) apply(l *models.Location) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&l.Name, p.Name)
	set(&l.Archetype, p.Archetype)
	set(&l.Symbol, p.Symbol)
	set(&l.Description, p.Description)
	set(&l.Color, p.Color)
	if p.Layer != nil {
		l.Layer = *p.Layer
	}
	if p.X != nil {
		l.X = *p.X
	}
	if p.Y != nil {
		l.Y = *p.Y
	}
}

func inputOf(l *models.Location) models.LocationInput {
	return models.LocationInput{
		Name:        l.Name,
		Archetype:   l.Archetype,
		Layer:       l.Layer,
		X:           l.X,
		Y:           l.Y,
		Symbol:      l.Symbol,
		Description: l.Description,
		Color:       l.Color,
	}
}

// CreateLocation adds a location by hand. An empty color is taken from the
// archetype palette.
func (s *Service) CreateLocation(ctx context.Context, in models.LocationInput) (*models.Location, error) {
	if err := validateLocation(&in); err != nil {
		return nil, err
	}
	if in.Color == "" {
		in.Color = extraction.ColorFor(in.Archetype)
	}
	var loc *models.Location
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		l, err := tx.CreateLocation(ctx, in, 1)
		if err != nil {
			return err
		}
		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionCreate,
			EntityType: models.SubjectLocation,
			EntityID:   l.ID,
			New:        l,
		}); err != nil {
			return err
		}
		loc = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sse.LocationCreated, loc)
	return loc, nil
}

// GetLocation returns one location.
func (s *Service) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return s.db.GetLocation(ctx, id)
}

// ListLocations returns every location, or only those on layer.
func (s *Service) ListLocations(ctx context.Context, layer *models.Layer) ([]models.Location, error) {
	return s.db.ListLocations(ctx, layer)
}

// UpdateLocation applies a partial update and records the before and after
// snapshots in the changelog.
func (s *Service) UpdateLocation(ctx context.Context, id int64, p LocationPatch) (*models.Location, error) {
	if p.Color != nil {
		if err := validation.Validate(*p.Color, validation.Required, validation.Match(colorRe)); err != nil {
			return nil, apperr.Validation(validation.Errors{"color": err})
		}
	}
	var updated *models.Location
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		l, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		before := *l
		p.apply(l)

		in := inputOf(l)
		if err := validateLocation(&in); err != nil {
			return err
		}
		l.Name = in.Name
		if err := tx.UpdateLocation(ctx, l); err != nil {
			return err
		}
		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionUpdate,
			EntityType: models.SubjectLocation,
			EntityID:   id,
			Old:        before,
			New:        l,
			UserNote:   p.UserNote,
		}); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sse.LocationUpdated, updated)
	return updated, nil
}

// DeleteLocation removes a location. Its dream links and transits go with
// it and the entities it owned become unplaced.
func (s *Service) DeleteLocation(ctx context.Context, id int64) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		l, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteLocation(ctx, id); err != nil {
			return err
		}
		_, err = tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionDelete,
			EntityType: models.SubjectLocation,
			EntityID:   id,
			Old:        l,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.publish(sse.LocationDeleted, map[string]int64{"id": id})
	return nil
}

// LocationTransits returns the transits that start or end at a location.
func (s *Service) LocationTransits(ctx context.Context, id int64) ([]models.Transit, error) {
	if _, err := s.db.GetLocation(ctx, id); err != nil {
		return nil, err
	}
	return s.db.ListTransitsForLocation(ctx, id)
}

// LocationHistory returns the changelog of a location, oldest first. The
// history of a merged or split away location remains readable.
func (s *Service) LocationHistory(ctx context.Context, id int64) ([]models.ChangeLog, error) {
	changes, err := s.db.ListChanges(ctx, models.SubjectLocation, id)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		if _, err := s.db.GetLocation(ctx, id); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// MergeLocations folds several locations into one.
func (s *Service) MergeLocations(ctx context.Context, req consolidate.MergeRequest) (*models.Location, error) {
	merged, err := s.ops.Merge(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.LocationsMerged()
	s.publish(sse.LocationMerged, map[string]any{"location": merged, "source_ids": req.SourceIDs})
	return merged, nil
}

// SplitLocation divides one location into several.
func (s *Service) SplitLocation(ctx context.Context, req consolidate.SplitRequest) ([]models.Location, error) {
	for i := range req.Parts {
		if err := validateLocation(&req.Parts[i]); err != nil {
			return nil, err
		}
	}
	parts, err := s.ops.Split(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.LocationsSplit()
	s.publish(sse.LocationSplit, map[string]any{"source_id": req.SourceID, "locations": parts})
	return parts, nil
}
