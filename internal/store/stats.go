package store

import (
	"context"

	"github.com/starford/dreamland/internal/models"
)

// Stats aggregates world counts. Run it inside InTx for a consistent view.
func (r repo) Stats(ctx context.Context) (*models.WorldStats, error) {
	var s models.WorldStats
	var err error
	if s.TotalDreams, err = r.CountDreams(ctx); err != nil {
		return nil, err
	}
	if s.TotalLocations, err = r.CountLocations(ctx); err != nil {
		return nil, err
	}
	if s.TotalEntities, err = r.CountEntities(ctx); err != nil {
		return nil, err
	}
	if s.TotalTransits, err = r.CountTransits(ctx); err != nil {
		return nil, err
	}
	if s.MostFrequentLocation, err = r.MostFrequentLocation(ctx); err != nil {
		return nil, err
	}
	if s.LatestDream, err = r.LatestDream(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}
