package worldservice

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/store"
)

func validateEntity(in *models.EntityInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Type == "" {
		in.Type = models.EntityAbstract
	}
	types := make([]any, len(models.EntityTypes))
	for i, t := range models.EntityTypes {
		types[i] = t
	}
	return apperr.Validation(validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Type, validation.In(types...)),
		validation.Field(&in.Confidence, validation.Min(0.0), validation.Max(1.0)),
	))
}

// CreateEntity adds an entity by hand. An owning location, when given, must exist.
func (s *Service) CreateEntity(ctx context.Context, in models.EntityInput) (*models.Entity, error) {
	if err := validateEntity(&in); err != nil {
		return nil, err
	}
	var ent *models.Entity
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if in.LocationID != nil {
			if _, err := tx.GetLocation(ctx, *in.LocationID); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Invalid("location %d does not exist", *in.LocationID)
				}
				return err
			}
		}
		e, err := tx.CreateEntity(ctx, in)
		if err != nil {
			return err
		}
		if _, err := tx.AppendChange(ctx, store.ChangeEntry{
			Action:     models.ActionCreate,
			EntityType: models.SubjectEntity,
			EntityID:   e.ID,
			New:        e,
		}); err != nil {
			return err
		}
		ent = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sse.EntityCreated, ent)
	return ent, nil
}

// GetEntity returns one entity.
func (s *Service) GetEntity(ctx context.Context, id int64) (*models.Entity, error) {
	return s.db.GetEntity(ctx, id)
}

// ListEntities returns every entity, or only those owned by one location.
func (s *Service) ListEntities(ctx context.Context, locationID *int64) ([]models.Entity, error) {
	return s.db.ListEntities(ctx, locationID)
}
