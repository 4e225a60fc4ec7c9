package api

import (
	"strings"

	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/worldservice"
)

// CreateDreamRequest is the request body for recording a dream.
type CreateDreamRequest struct {
	Date     string `json:"date" example:"2024-01-15" validate:"required"`
	Cycle    int    `json:"cycle" example:"1"`
	Content  string `json:"content" example:"I was walking through a forest." validate:"required"`
	Language string `json:"language" example:"en"`
}

// DreamListResponse wraps a page of dreams.
type DreamListResponse struct {
	Dreams []models.Dream `json:"dreams" validate:"required"`
	Total  int            `json:"total" example:"42" validate:"required"`
	Skip   int            `json:"skip" example:"0"`
	Limit  int            `json:"limit" example:"100"`
}

// DreamDetail is a dream with its linked location and entity ids.
type DreamDetail = worldservice.DreamDetail

// CreateEntityRequest is the request body for adding an entity by hand.
// Confidence defaults to 1.
type CreateEntityRequest struct {
	Name        string            `json:"name" example:"Grandmother" validate:"required"`
	Type        models.EntityType `json:"type" example:"person"`
	Description string            `json:"description"`
	Symbol      string            `json:"symbol"`
	Confidence  *float64          `json:"confidence,omitempty" example:"0.9"`
	LocationID  *int64            `json:"location_id,omitempty"`
}

func (r CreateEntityRequest) input() models.EntityInput {
	conf := 1.0
	if r.Confidence != nil {
		conf = *r.Confidence
	}
	return models.EntityInput{
		Name:        r.Name,
		Type:        models.EntityType(strings.ToLower(strings.TrimSpace(string(r.Type)))),
		Description: r.Description,
		Symbol:      r.Symbol,
		Confidence:  conf,
		LocationID:  r.LocationID,
	}
}

// SplitResponse lists the locations a split produced.
type SplitResponse struct {
	Locations []models.Location `json:"locations" validate:"required"`
}
