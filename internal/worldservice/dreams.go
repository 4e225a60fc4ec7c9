package worldservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/store"
)

// Dream listing bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// DefaultLanguage is used when a dream does not name its language.
const DefaultLanguage = "en"

// DreamInput is a dream submitted for intake.
type DreamInput struct {
	Date     time.Time `json:"date"`
	Cycle    int       `json:"cycle"`
	Content  string    `json:"content"`
	Language string    `json:"language"`
}

// normalize applies defaults and validates the input.
func (in *DreamInput) normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	in.Language = strings.TrimSpace(in.Language)
	if in.Cycle == 0 {
		in.Cycle = 1
	}
	if in.Language == "" {
		in.Language = DefaultLanguage
	}
	return apperr.Validation(validation.ValidateStruct(in,
		validation.Field(&in.Date, validation.Required),
		validation.Field(&in.Cycle, validation.Min(1)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Language, validation.Length(1, 5)),
	))
}

// DreamDetail is a dream with the ids of everything reconciliation linked to it.
type DreamDetail struct {
	models.Dream
	LocationIDs []int64 `json:"location_ids"`
	EntityIDs   []int64 `json:"entity_ids"`
}

// CreateDream stores a new unprocessed dream and queues it for processing.
// It returns as soon as the dream is persisted.
func (s *Service) CreateDream(ctx context.Context, in DreamInput) (*models.Dream, error) {
	return s.createDream(ctx, in, nil)
}

func (s *Service) createDream(ctx context.Context, in DreamInput, within func(tx *store.Tx, d *models.Dream) error) (*models.Dream, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var dream *models.Dream
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		d, err := tx.CreateDream(ctx, models.Dream{
			Date:     in.Date,
			Cycle:    in.Cycle,
			Content:  in.Content,
			Language: in.Language,
		})
		if err != nil {
			return err
		}
		if within != nil {
			if err := within(tx, d); err != nil {
				return err
			}
		}
		dream = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DreamCreated()
	s.logger.Info("dream recorded", slog.Int64("dream_id", dream.ID), slog.Int("cycle", dream.Cycle))
	s.schedule(dream.ID)
	s.publish(sse.DreamCreated, map[string]any{"id": dream.ID, "date": dream.Date})
	return dream, nil
}

// ProcessDream queues an unprocessed dream again. Processed dreams are a
// conflict; a full queue reports the processing backend unavailable.
func (s *Service) ProcessDream(ctx context.Context, id int64) (*models.Dream, error) {
	d, err := s.db.GetDream(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Processed {
		return nil, apperr.Conflictf("dream %d is already processed", id)
	}
	if !s.schedule(id) {
		return nil, apperr.Unavailable("processing queue", fmt.Errorf("dream %d not scheduled", id))
	}
	return d, nil
}

// PendingDreams returns the ids of dreams still awaiting reconciliation.
func (s *Service) PendingDreams(ctx context.Context) ([]int64, error) {
	ids, err := s.db.ListUnprocessedDreamIDs(ctx)
	return nonNil(ids), err
}

// GetDream returns a dream with its linked locations and entities.
func (s *Service) GetDream(ctx context.Context, id int64) (*DreamDetail, error) {
	d, err := s.db.GetDream(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.db.ListDreamLocations(ctx, id)
	if err != nil {
		return nil, err
	}
	ents, err := s.db.ListDreamEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &DreamDetail{Dream: *d, LocationIDs: []int64{}, EntityIDs: []int64{}}
	for _, l := range links {
		detail.LocationIDs = append(detail.LocationIDs, l.LocationID)
	}
	for _, e := range ents {
		detail.EntityIDs = append(detail.EntityIDs, e.EntityID)
	}
	return detail, nil
}

// PageLimit applies the list default and cap to a requested page size.
func PageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// ListDreams returns a page of dreams newest first and the total count.
// limit goes through PageLimit.
func (s *Service) ListDreams(ctx context.Context, skip, limit int) ([]models.Dream, int, error) {
	limit = PageLimit(limit)
	if skip < 0 {
		skip = 0
	}
	dreams, err := s.db.ListDreams(ctx, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.db.CountDreams(ctx)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(dreams), total, nil
}

// DeleteDream removes a dream, its links and its transits. Locations and
// entities it contributed to remain.
func (s *Service) DeleteDream(ctx context.Context, id int64) error {
	if err := s.db.InTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteDream(ctx, id)
	}); err != nil {
		return err
	}
	s.publish(sse.DreamDeleted, map[string]int64{"id": id})
	return nil
}
