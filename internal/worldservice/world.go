package worldservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dreamland/internal/checksum"
	"github.com/starford/dreamland/internal/journal"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/store"
)

// Stats returns aggregate counts over the world model.
func (s *Service) Stats(ctx context.Context) (*models.WorldStats, error) {
	return s.db.Stats(ctx)
}

// Export snapshots the whole world model inside one transaction.
func (s *Service) Export(ctx context.Context) (*models.WorldExport, error) {
	out := &models.WorldExport{
		ExportID:   uuid.NewString(),
		ExportDate: time.Now().UTC(),
	}
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if out.Dreams, err = tx.ListDreams(ctx, 0, 0); err != nil {
			return err
		}
		if out.Locations, err = tx.ListLocations(ctx, nil); err != nil {
			return err
		}
		if out.Entities, err = tx.ListEntities(ctx, nil); err != nil {
			return err
		}
		out.Transits, err = tx.ListTransits(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Dreams, out.Locations = nonNil(out.Dreams), nonNil(out.Locations)
	out.Entities, out.Transits = nonNil(out.Entities), nonNil(out.Transits)
	s.logger.Info("world exported",
		slog.String("export_id", out.ExportID),
		slog.Int("dreams", len(out.Dreams)),
		slog.Int("locations", len(out.Locations)))
	return out, nil
}

// ImportJournal turns a journal file into a dream unless a file with the
// same normalized content was imported before. It reports whether a dream
// was created.
func (s *Service) ImportJournal(ctx context.Context, path string, data []byte, modTime time.Time) (*models.Dream, bool, error) {
	sum := checksum.Sum(data)
	seen, err := s.db.HasImport(ctx, sum)
	if err != nil {
		return nil, false, err
	}
	if seen {
		return nil, false, nil
	}

	entry, err := journal.Parse(data, modTime)
	if errors.Is(err, journal.ErrEmpty) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", path, err)
	}

	var duplicate bool
	d, err := s.createDream(ctx, DreamInput{
		Date:     entry.Date,
		Cycle:    entry.Cycle,
		Content:  entry.Content,
		Language: entry.Language,
	}, func(tx *store.Tx, d *models.Dream) error {
		again, err := tx.HasImport(ctx, sum)
		if err != nil {
			return err
		}
		if again {
			duplicate = true
			return errDuplicateImport
		}
		return tx.RecordImport(ctx, sum, path, d.ID)
	})
	if duplicate {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

var errDuplicateImport = errors.New("journal file already imported")
